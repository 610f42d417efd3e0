package storage

import "github.com/username/easyledger/backend/src/models"

// SystemCategories are seeded on first initialisation of an empty store.
// Their ids are fixed so backups from any device agree on them.
func SystemCategories() []models.NewCategory {
	return []models.NewCategory{
		{ID: "food", Name: "Food", Icon: "utensils", Color: "#EF4444", Type: models.TransactionTypeExpense, IsSystem: true},
		{ID: "transport", Name: "Transport", Icon: "car", Color: "#3B82F6", Type: models.TransactionTypeExpense, IsSystem: true},
		{ID: "shopping", Name: "Shopping", Icon: "shopping-bag", Color: "#F59E0B", Type: models.TransactionTypeExpense, IsSystem: true},
		{ID: "salary", Name: "Salary", Icon: "currency-dollar", Color: "#10B981", Type: models.TransactionTypeIncome, IsSystem: true},
	}
}
