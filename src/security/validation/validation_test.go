package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/easyledger/backend/src/models"
)

func TestSanitizers(t *testing.T) {
	assert.Equal(t, "Groceries", SanitizeText("<b>Groceries</b>"))
	assert.Equal(t, "Fish & Chips", CleanText("  Fish & Chips<script>alert(1)</script>\x00 "))
	assert.Equal(t, "'=SUM(A1:A3)", SanitizeForFormulaInjection("=SUM(A1:A3)"))
	assert.Equal(t, "'  -5", SanitizeForFormulaInjection("  -5"))
	assert.Equal(t, "rent", SanitizeForFormulaInjection("rent"))
	assert.Equal(t, "ab\tc", StripUnprintable("a\x07b\tc"))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in            string
		allowNegative bool
		want          string
		wantErr       bool
	}{
		{"1000", false, "1000", false},
		{" 12.50 ", false, "12.5", false},
		{"-3.25", true, "-3.25", false},
		{"-3.25", false, "", true},
		{"abc", false, "", true},
		{"1e6", false, "", true},
		{"0.00001", false, "", true},
		{"2000000000000", false, "", true},
		{"", false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in, "Amount", tt.allowNegative)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-14", "Date")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14T00:00:00.000Z", models.FormatTime(d))

	d, err = ParseDate("2025-03-14T10:30:00+02:00", "Date")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14T08:30:00.000Z", models.FormatTime(d))

	_, err = ParseDate("14-03-2025", "Date")
	assert.ErrorIs(t, err, ErrValidationFailed)

	empty, err := ParseOptionalDate("  ", "startDate")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestAccountInputValidate(t *testing.T) {
	got, err := AccountInput{Name: " <i>Test Bank</i> ", Currency: "usd", InitialBalance: json.Number("1000")}.Validate()
	require.NoError(t, err)
	assert.Equal(t, "Test Bank", got.Name)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "1000", got.InitialBalance.String())

	noBalance, err := AccountInput{Name: "Cash", Currency: "EUR"}.Validate()
	require.NoError(t, err)
	assert.True(t, noBalance.InitialBalance.IsZero())

	_, err = AccountInput{Name: "", Currency: "USD"}.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = AccountInput{Name: "Cash", Currency: "DOLLARS"}.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = AccountInput{Name: "Cash", Currency: "USD", InitialBalance: json.Number("lots")}.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestTransactionInputValidate(t *testing.T) {
	receipt := "  receipts/42.png "
	in := TransactionInput{
		AccountID:    "acc",
		CategoryID:   "food",
		Amount:       json.Number("9.99"),
		Type:         "Expense",
		Description:  "<b>lunch</b>",
		Date:         "2025-01-02",
		ReceiptImage: &receipt,
	}
	got, err := in.Validate()
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeExpense, got.Type)
	assert.Equal(t, "lunch", got.Description)
	assert.Equal(t, "9.99", got.Amount.String())
	require.NotNil(t, got.ReceiptImage)
	assert.Equal(t, "receipts/42.png", *got.ReceiptImage)

	bad := in
	bad.Amount = json.Number("0")
	_, err = bad.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)

	bad = in
	bad.Type = "transfer"
	_, err = bad.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)

	bad = in
	bad.Description = strings.Repeat("x", MaxDescriptionLength+1)
	_, err = bad.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)

	bad = in
	bad.AccountID = ""
	_, err = bad.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestCategoryInputValidate(t *testing.T) {
	got, err := CategoryInput{Name: "Rent", Type: "expense"}.Validate()
	require.NoError(t, err)
	assert.Equal(t, "tag", got.Icon)
	assert.Equal(t, "#6B7280", got.Color)
	assert.False(t, got.IsSystem)
	assert.Empty(t, got.ID)

	_, err = CategoryInput{Name: "Rent", Color: "red", Type: "expense"}.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = CategoryInput{Name: "Rent", Icon: "<svg>", Type: "expense"}.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestQueryInputValidate(t *testing.T) {
	opts, err := QueryInput{StartDate: "2025-01-01", EndDate: "2025-01-31", Type: "income", Limit: "10", Offset: "5"}.Validate()
	require.NoError(t, err)
	require.NotNil(t, opts.StartDate)
	require.NotNil(t, opts.EndDate)
	assert.Equal(t, models.TransactionTypeIncome, opts.Type)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 5, opts.Offset)

	empty, err := QueryInput{}.Validate()
	require.NoError(t, err)
	assert.Nil(t, empty.StartDate)
	assert.Zero(t, empty.Limit)

	_, err = QueryInput{StartDate: "2025-02-01", EndDate: "2025-01-01"}.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = QueryInput{Limit: "-1"}.Validate()
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateBackupUpload(t *testing.T) {
	assert.NoError(t, ValidateBackupContentType("application/json; charset=utf-8"))
	assert.ErrorIs(t, ValidateBackupContentType("image/png"), ErrValidationFailed)

	assert.NoError(t, ValidateBackupContent(strings.NewReader("\n  {\"version\":\"1.0\"}")))
	assert.ErrorIs(t, ValidateBackupContent(strings.NewReader("")), ErrValidationFailed)
	assert.ErrorIs(t, ValidateBackupContent(strings.NewReader("[1,2]")), ErrValidationFailed)
	assert.ErrorIs(t, ValidateBackupContent(strings.NewReader("{\x00\x01")), ErrValidationFailed)
}
