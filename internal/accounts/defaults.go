package accounts

import "github.com/fluxo-dev/fluxo/internal/model"

// DefaultAccounts returns the starter accounts for a new tenant of the given
// business type. Initial balances start at zero.
func DefaultAccounts(businessType string) []model.Account {
	switch businessType {
	case "individual":
		return individualAccounts()
	default:
		return companyAccounts()
	}
}

func companyAccounts() []model.Account {
	return []model.Account{
		{ID: 1010, Name: "Caixa", Active: true},
		{ID: 1020, Name: "Conta Corrente", Active: true},
		{ID: 1030, Name: "Conta Poupança", Active: true},
		{ID: 1040, Name: "Aplicações", Active: true},
	}
}

func individualAccounts() []model.Account {
	return []model.Account{
		{ID: 1010, Name: "Carteira", Active: true},
		{ID: 1020, Name: "Conta Corrente", Active: true},
	}
}
