package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/username/easyledger/backend/src/models"
)

// AccountInput is the raw account payload from the host. Amounts arrive as
// JSON numbers or numeric strings.
type AccountInput struct {
	Name           string      `json:"name"`
	Currency       string      `json:"currency"`
	InitialBalance json.Number `json:"initialBalance"`
	IsDefault      bool        `json:"isDefault"`
}

// Validate cleans the payload and converts it to a NewAccount. A missing
// initial balance means zero; negative balances are allowed.
func (in AccountInput) Validate() (models.NewAccount, error) {
	name, err := ValidateLabel(in.Name, "Name")
	if err != nil {
		return models.NewAccount{}, err
	}
	currency, err := ValidateCurrencyCode(in.Currency)
	if err != nil {
		return models.NewAccount{}, err
	}
	raw := in.InitialBalance.String()
	if raw == "" {
		raw = "0"
	}
	balance, err := ParseAmount(raw, "Initial balance", true)
	if err != nil {
		return models.NewAccount{}, err
	}
	return models.NewAccount{Name: name, Currency: currency, InitialBalance: balance, IsDefault: in.IsDefault}, nil
}

// TransactionInput is the raw transaction payload from the host.
type TransactionInput struct {
	AccountID    string      `json:"accountId"`
	CategoryID   string      `json:"categoryId"`
	Amount       json.Number `json:"amount"`
	Type         string      `json:"type"`
	Description  string      `json:"description"`
	Date         string      `json:"date"`
	ReceiptImage *string     `json:"receiptImage,omitempty"`
}

// Validate cleans the payload. Amounts must be positive: the direction is
// carried by Type.
func (in TransactionInput) Validate() (models.NewTransaction, error) {
	if err := ValidateID(in.AccountID, "Account"); err != nil {
		return models.NewTransaction{}, err
	}
	if err := ValidateID(in.CategoryID, "Category"); err != nil {
		return models.NewTransaction{}, err
	}
	amount, err := ParseAmount(in.Amount.String(), "Amount", false)
	if err != nil {
		return models.NewTransaction{}, err
	}
	if amount.IsZero() {
		return models.NewTransaction{}, fmt.Errorf("%w: Amount must be greater than zero", ErrValidationFailed)
	}
	typ, err := ValidateTransactionType(in.Type)
	if err != nil {
		return models.NewTransaction{}, err
	}
	date, err := ParseDate(in.Date, "Date")
	if err != nil {
		return models.NewTransaction{}, err
	}
	description := CleanText(in.Description)
	if err := ValidateStringMaxLength(description, MaxDescriptionLength, "Description"); err != nil {
		return models.NewTransaction{}, err
	}

	var receipt *string
	if in.ReceiptImage != nil {
		ref := strings.TrimSpace(*in.ReceiptImage)
		if err := ValidateStringMaxLength(ref, MaxReceiptRefLength, "Receipt image"); err != nil {
			return models.NewTransaction{}, err
		}
		if ref != "" {
			receipt = &ref
		}
	}

	return models.NewTransaction{
		AccountID:    in.AccountID,
		CategoryID:   in.CategoryID,
		Amount:       amount,
		Type:         typ,
		Description:  description,
		Date:         date,
		ReceiptImage: receipt,
	}, nil
}

// CategoryInput is the raw category payload. User categories are never
// system categories and never carry their own id.
type CategoryInput struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Type  string `json:"type"`
}

func (in CategoryInput) Validate() (models.NewCategory, error) {
	name, err := ValidateLabel(in.Name, "Name")
	if err != nil {
		return models.NewCategory{}, err
	}
	icon := strings.TrimSpace(in.Icon)
	if icon == "" {
		icon = "tag"
	}
	if err := ValidateIcon(icon); err != nil {
		return models.NewCategory{}, err
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = "#6B7280"
	}
	if err := ValidateColor(color); err != nil {
		return models.NewCategory{}, err
	}
	typ, err := ValidateTransactionType(in.Type)
	if err != nil {
		return models.NewCategory{}, err
	}
	return models.NewCategory{Name: name, Icon: icon, Color: strings.ToUpper(color), Type: typ}, nil
}

// QueryInput carries transaction filters as they appear in a query string.
type QueryInput struct {
	StartDate  string
	EndDate    string
	Type       string
	CategoryID string
	Limit      string
	Offset     string
}

// Validate converts the filters. Empty fields are absent.
func (in QueryInput) Validate() (*models.QueryOptions, error) {
	opts := &models.QueryOptions{CategoryID: strings.TrimSpace(in.CategoryID)}
	var err error
	if opts.StartDate, err = ParseOptionalDate(in.StartDate, "startDate"); err != nil {
		return nil, err
	}
	if opts.EndDate, err = ParseOptionalDate(in.EndDate, "endDate"); err != nil {
		return nil, err
	}
	if opts.StartDate != nil && opts.EndDate != nil && opts.EndDate.Before(*opts.StartDate) {
		return nil, fmt.Errorf("%w: endDate is before startDate", ErrValidationFailed)
	}
	if strings.TrimSpace(in.Type) != "" {
		if opts.Type, err = ValidateTransactionType(in.Type); err != nil {
			return nil, err
		}
	}
	if opts.Limit, err = ValidateIntString(in.Limit, "limit", 0, 10000); err != nil {
		return nil, err
	}
	if opts.Offset, err = ValidateIntString(in.Offset, "offset", 0, 1<<30); err != nil {
		return nil, err
	}
	return opts, nil
}
