//go:build unit

package queries_test

import (
	"context"
	"testing"

	"marketlink/internal/infra"
	"marketlink/internal/usecase/queries"
	queriesmock "marketlink/tests/mock/queries"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestOrderQueries_GetByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := queriesmock.NewMockOrderReadStore(ctrl)
	sut := queries.NewOrderQueries(store)

	t.Run("maps storage not-found to domain error", func(t *testing.T) {
		id := uuid.New()
		store.EXPECT().FindByID(gomock.Any(), id).Return(nil,
			infra.WrapRepoErr("order not found", nil, infra.KindNotFound))

		_, err := sut.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, queries.ErrOrderNotFound)
	})

	t.Run("passes views through", func(t *testing.T) {
		id := uuid.New()
		view := &queries.OrderView{ID: id, Status: "pending"}
		store.EXPECT().FindByID(gomock.Any(), id).Return(view, nil)

		actual, err := sut.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, view, actual)
	})
}

func TestOrderQueries_ListByCustomer(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := queriesmock.NewMockOrderReadStore(ctrl)
	sut := queries.NewOrderQueries(store)

	customerID := uuid.New()
	items := []*queries.OrderListItem{{ID: uuid.New(), Status: "paid"}}
	store.EXPECT().FindByCustomerID(gomock.Any(), customerID).Return(items, nil)

	actual, err := sut.ListByCustomer(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, items, actual)
}
