package source

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"admin-reports/internal/models"
)

const lineItemHeader = "transaction_id,occurred_at,status,customer_id,category_id,category_name,vendor_id,vendor_name,product_id,product_name,quantity,unit_price"

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "test*.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}

func TestReadTransactionsCSV_FoldsLineItems(t *testing.T) {
	csv := lineItemHeader + `
T1,2024-01-15,delivered,U1,C1,Electronics,V1,Acme,P1,Laptop,1,999.99
T1,2024-01-15,delivered,U1,C1,Electronics,V1,Acme,P2,Mouse,2,20.00
T2,2024-02-01T10:00:00Z,cancelled,U2,,,V2,Globex,P2,Mouse,1,20.00`

	data, err := ReadTransactionsCSV(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadTransactionsCSV() error = %v", err)
	}

	if len(data.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(data.Transactions))
	}

	t1 := data.Transactions[0]
	if t1.ID != "T1" || len(t1.LineItems) != 2 {
		t.Errorf("unexpected first transaction %+v", t1)
	}
	if !t1.Amount.Equal(decimal.RequireFromString("1039.99")) {
		t.Errorf("T1 amount = %s, want 1039.99", t1.Amount)
	}
	if t1.CategoryRef() != "C1" {
		t.Errorf("T1 category = %s", t1.CategoryRef())
	}

	t2 := data.Transactions[1]
	if t2.Status != models.StatusCancelled {
		t.Errorf("T2 status = %s", t2.Status)
	}
	if t2.CategoryRef() != models.UncategorizedID {
		t.Errorf("T2 should be uncategorized, got %s", t2.CategoryRef())
	}

	kinds := map[models.DimensionKind]int{}
	for _, d := range data.Dimensions {
		kinds[d.Kind]++
	}
	if kinds[models.DimensionCategory] != 1 || kinds[models.DimensionVendor] != 2 || kinds[models.DimensionProduct] != 2 {
		t.Errorf("unexpected dimension counts %v", kinds)
	}
}

func TestReadTransactionsCSV_InvalidData(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr bool
	}{
		{name: "empty file", csv: "", wantErr: true},
		{name: "header only", csv: lineItemHeader, wantErr: true},
		{name: "invalid date", csv: lineItemHeader + "\nT1,someday,delivered,U1,C1,Cat,V1,Ven,P1,Prod,1,10", wantErr: true},
		{name: "invalid status", csv: lineItemHeader + "\nT1,2024-01-01,lost,U1,C1,Cat,V1,Ven,P1,Prod,1,10", wantErr: true},
		{name: "invalid quantity", csv: lineItemHeader + "\nT1,2024-01-01,delivered,U1,C1,Cat,V1,Ven,P1,Prod,x,10", wantErr: true},
		{name: "negative price", csv: lineItemHeader + "\nT1,2024-01-01,delivered,U1,C1,Cat,V1,Ven,P1,Prod,1,-10", wantErr: true},
		{name: "bad row skipped", csv: lineItemHeader + "\nT1,2024-01-01,delivered,U1,C1,Cat,V1,Ven,P1,Prod,x,10\nT2,2024-01-01,delivered,U1,C1,Cat,V1,Ven,P1,Prod,1,10", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTransactionsCSV(context.Background(), strings.NewReader(tt.csv))
			if (err != nil) != tt.wantErr {
				t.Errorf("ReadTransactionsCSV() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadCSV_WithUsers(t *testing.T) {
	txPath := createTempCSV(t, lineItemHeader+`
T1,2024-01-15,delivered,U1,C1,Electronics,V1,Acme,P1,Laptop,1,10
T2,2024-02-15,delivered,U1,C1,Electronics,V1,Acme,P1,Laptop,1,10
T3,2024-02-16,delivered,U2,C1,Electronics,V1,Acme,P1,Laptop,1,10`)
	usersPath := createTempCSV(t, `user_id,created_at,role
U1,2023-12-01,customer
U2,2024-01-20,customer
S1,2023-01-01,staff
bad,row`)

	data, err := LoadCSV(context.Background(), txPath, usersPath)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}

	if len(data.Users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(data.Users))
	}
	want := map[string]int{"U1": 2, "U2": 1, "S1": 0}
	for _, u := range data.Users {
		if u.OrderCount != want[u.ID] {
			t.Errorf("user %s order count = %d, want %d", u.ID, u.OrderCount, want[u.ID])
		}
	}
}

func TestLoadCSV_MissingFile(t *testing.T) {
	if _, err := LoadCSV(context.Background(), "does-not-exist.csv", ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMemory_FindTransactions(t *testing.T) {
	jan := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)
	m := NewMemory(Dataset{Transactions: []models.TransactionRecord{
		{ID: "a", OccurredAt: jan, Status: models.StatusDelivered},
		{ID: "b", OccurredAt: jan, Status: models.StatusCancelled},
	}})
	m.AddTransactions(models.TransactionRecord{ID: "c", OccurredAt: feb, Status: models.StatusShipped})

	filter := models.TransactionFilter{Statuses: models.SalesStatuses}
	got, err := m.FindTransactions(context.Background(), filter, jan, feb)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("expected only transaction a, got %+v", got)
	}

	got, err = m.FindTransactions(context.Background(), models.TransactionFilter{}, jan, feb.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 transactions with empty filter, got %d", len(got))
	}
}

func TestMemory_FindDimensionsAndUsers(t *testing.T) {
	m := NewMemory(Dataset{})
	m.AddDimensions(
		models.CatalogDimension{ID: "c1", Name: "Books", Kind: models.DimensionCategory},
		models.CatalogDimension{ID: "c2", Name: "Games", Kind: models.DimensionCategory},
		models.CatalogDimension{ID: "v1", Name: "Acme", Kind: models.DimensionVendor},
	)
	m.AddUsers(
		models.UserRecord{ID: "u1", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Role: models.RoleCustomer},
		models.UserRecord{ID: "s1", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Role: models.RoleAdmin},
		models.UserRecord{ID: "u2", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Role: models.RoleCustomer},
	)
	ctx := context.Background()

	cats, _ := m.FindDimensions(ctx, models.DimensionCategory, models.DimensionFilter{})
	if len(cats) != 2 {
		t.Errorf("expected 2 categories, got %d", len(cats))
	}
	cats, _ = m.FindDimensions(ctx, models.DimensionCategory, models.DimensionFilter{IDs: []string{"c2"}})
	if len(cats) != 1 || cats[0].Name != "Games" {
		t.Errorf("expected only Games, got %+v", cats)
	}

	users, _ := m.FindUsers(ctx, models.UserFilter{ExcludeStaff: true, CreatedBefore: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)})
	if len(users) != 1 || users[0].ID != "u1" {
		t.Errorf("expected only u1, got %+v", users)
	}

	if stats := m.Stats(); stats["users"] != 3 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory(Dataset{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.FindTransactions(ctx, models.TransactionFilter{}, time.Time{}, time.Now()); err == nil {
		t.Error("expected error on cancelled context")
	}
	if _, err := m.FindUsers(ctx, models.UserFilter{}); err == nil {
		t.Error("expected error on cancelled context")
	}
}
