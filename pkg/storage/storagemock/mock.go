package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tariffscope/tariffscope/pkg/storage"
	"github.com/tariffscope/tariffscope/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) ListTariffs(ctx context.Context) ([]types.TariffSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.TariffSummary), args.Error(1)
}

func (m *MockDatabase) GetTariff(ctx context.Context, label string) (types.Tariff, error) {
	args := m.Called(ctx, label)
	if len(args) > 0 {
		return args.Get(0).(types.Tariff), args.Error(1)
	}
	return types.Tariff{}, nil
}

func (m *MockDatabase) SaveTariff(ctx context.Context, t types.Tariff) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockDatabase) DeleteTariff(ctx context.Context, label string) error {
	args := m.Called(ctx, label)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
