package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
)

var saleTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newSaleRepo(t *testing.T) (*catalog.SaleRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &catalog.SaleRepo{DB: mock, Now: func() time.Time { return saleTime }}, mock
}

func expectLock(mock pgxmock.PgxPoolIface, productID string, stock int, price int64) {
	mock.ExpectQuery(`SELECT stock_quantity, price_cents FROM products WHERE id=\$1 FOR UPDATE`).
		WithArgs(productID).
		WillReturnRows(pgxmock.NewRows([]string{"stock_quantity", "price_cents"}).AddRow(stock, price))
}

func TestRecordSale_SellOutThenReject(t *testing.T) {
	// given: P1 with stock 5 at 15000 cents
	repo, mock := newSaleRepo(t)
	p1 := uuid.NewString()

	mock.ExpectBegin()
	expectLock(mock, p1, 5, 15000)
	mock.ExpectExec("UPDATE products SET stock_quantity = stock_quantity -").
		WithArgs(p1, 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO sales").
		WithArgs(pgxmock.AnyArg(), p1, 5, int64(15000), int64(75000), saleTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	expectLock(mock, p1, 0, 15000)
	mock.ExpectRollback()

	// when
	sale, err := repo.RecordSale(context.Background(), p1, 5)

	// then
	require.NoError(t, err)
	require.Equal(t, p1, sale.ProductID)
	require.Equal(t, 5, sale.QuantitySold)
	require.Equal(t, int64(15000), sale.SalePricePerUnitCents)
	require.Equal(t, int64(75000), sale.TotalAmountCents)
	require.Equal(t, saleTime, sale.SaleDate)
	_, err = uuid.Parse(sale.ID)
	require.NoError(t, err)

	// when: stock is now 0
	_, err = repo.RecordSale(context.Background(), p1, 1)

	// then
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_ValidationBeforeAnyQuery(t *testing.T) {
	repo, mock := newSaleRepo(t)

	for _, qty := range []int{0, -3} {
		_, err := repo.RecordSale(context.Background(), uuid.NewString(), qty)
		require.ErrorIs(t, err, catalog.ErrInvalidQuantity)
	}
	_, err := repo.RecordSale(context.Background(), "not-a-uuid", 1)
	require.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_UnknownProduct(t *testing.T) {
	repo, mock := newSaleRepo(t)
	id := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_quantity, price_cents FROM products").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.RecordSale(context.Background(), id, 1)
	require.ErrorIs(t, err, catalog.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_InsertFailureRollsBack(t *testing.T) {
	// given
	repo, mock := newSaleRepo(t)
	id := uuid.NewString()
	boom := errors.New("disk full")

	mock.ExpectBegin()
	expectLock(mock, id, 10, 2500)
	mock.ExpectExec("UPDATE products SET stock_quantity").
		WithArgs(id, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO sales").
		WithArgs(pgxmock.AnyArg(), id, 2, int64(2500), int64(5000), saleTime).
		WillReturnError(boom)
	mock.ExpectRollback()

	// when
	_, err := repo.RecordSale(context.Background(), id, 2)

	// then: no commit, the decrement is rolled back with the transaction
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_LocksRowBeforeDecrement(t *testing.T) {
	// given: expectations must be met in order, so the decrement cannot run ahead of the row lock
	repo, mock := newSaleRepo(t)
	mock.MatchExpectationsInOrder(true)
	id := uuid.NewString()

	mock.ExpectBegin()
	expectLock(mock, id, 3, 1000)
	mock.ExpectExec("UPDATE products SET stock_quantity = stock_quantity - \\$2").
		WithArgs(id, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO sales").
		WithArgs(pgxmock.AnyArg(), id, 3, int64(1000), int64(3000), saleTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// when
	sale, err := repo.RecordSale(context.Background(), id, 3)

	// then
	require.NoError(t, err)
	require.Equal(t, int64(3000), sale.TotalAmountCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSales_DefaultLimit(t *testing.T) {
	repo, mock := newSaleRepo(t)
	id, pid := uuid.NewString(), uuid.NewString()

	mock.ExpectQuery("FROM sales s JOIN products p").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "name", "quantity_sold", "sale_price_per_unit_cents", "total_amount_cents", "sale_date"}).
			AddRow(id, pid, "Serum", 2, int64(1000), int64(2000), saleTime))

	sales, err := repo.ListSales(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Equal(t, "Serum", sales[0].ProductName)
	require.Equal(t, int64(2000), sales[0].TotalAmountCents)
	require.NoError(t, mock.ExpectationsWereMet())
}
