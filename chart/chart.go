// Package chart ships a default chart of accounts and a CSV
// import/export format for bootstrapping new tenants.
package chart

import "github.com/corvetik19-lab/finapp-sub014/ledger"

// Definition describes one account in a chart template. Codes reference
// each other; IDs are assigned at import time.
type Definition struct {
	Code       string
	Name       string
	Type       ledger.AccountType
	ParentCode string
	Dimensions map[string]string
}

// Default returns the standard chart used when a tenant starts empty.
// Codes follow the Russian unified chart of accounts; sub-accounts use
// dotted codes under their parent.
func Default() []Definition {
	return []Definition{
		{Code: "01", Name: "Основные средства", Type: ledger.AccountAsset},
		{Code: "02", Name: "Амортизация основных средств", Type: ledger.AccountLiability},
		{Code: "10", Name: "Материалы", Type: ledger.AccountAsset},
		{Code: "19", Name: "НДС по приобретённым ценностям", Type: ledger.AccountAsset},
		{Code: "20", Name: "Основное производство", Type: ledger.AccountExpense},
		{Code: "26", Name: "Общехозяйственные расходы", Type: ledger.AccountExpense},
		{Code: "41", Name: "Товары", Type: ledger.AccountAsset},
		{Code: "44", Name: "Расходы на продажу", Type: ledger.AccountExpense},
		{Code: "50", Name: "Касса", Type: ledger.AccountAsset},
		{Code: "51", Name: "Расчётные счета", Type: ledger.AccountAsset},
		{Code: "57", Name: "Переводы в пути", Type: ledger.AccountAsset},
		{Code: "60", Name: "Расчёты с поставщиками и подрядчиками", Type: ledger.AccountLiability},
		{Code: "60.01", Name: "Расчёты с поставщиками", Type: ledger.AccountLiability, ParentCode: "60"},
		{Code: "60.02", Name: "Авансы выданные", Type: ledger.AccountAsset, ParentCode: "60"},
		{Code: "62", Name: "Расчёты с покупателями и заказчиками", Type: ledger.AccountAsset},
		{Code: "62.01", Name: "Расчёты с покупателями", Type: ledger.AccountAsset, ParentCode: "62"},
		{Code: "62.02", Name: "Авансы полученные", Type: ledger.AccountLiability, ParentCode: "62"},
		{Code: "66", Name: "Расчёты по краткосрочным кредитам и займам", Type: ledger.AccountLiability},
		{Code: "68", Name: "Расчёты по налогам и сборам", Type: ledger.AccountLiability},
		{Code: "68.01", Name: "НДФЛ", Type: ledger.AccountLiability, ParentCode: "68"},
		{Code: "68.02", Name: "НДС", Type: ledger.AccountLiability, ParentCode: "68"},
		{Code: "68.04", Name: "Налог на прибыль", Type: ledger.AccountLiability, ParentCode: "68"},
		{Code: "69", Name: "Расчёты по социальному страхованию", Type: ledger.AccountLiability},
		{Code: "70", Name: "Расчёты с персоналом по оплате труда", Type: ledger.AccountLiability},
		{Code: "71", Name: "Расчёты с подотчётными лицами", Type: ledger.AccountAsset},
		{Code: "75", Name: "Расчёты с учредителями", Type: ledger.AccountLiability},
		{Code: "76", Name: "Расчёты с разными дебиторами и кредиторами", Type: ledger.AccountLiability},
		{Code: "80", Name: "Уставный капитал", Type: ledger.AccountEquity},
		{Code: "84", Name: "Нераспределённая прибыль", Type: ledger.AccountEquity},
		{Code: "90", Name: "Продажи", Type: ledger.AccountIncome},
		{Code: "90.01", Name: "Выручка", Type: ledger.AccountIncome, ParentCode: "90"},
		{Code: "90.02", Name: "Себестоимость продаж", Type: ledger.AccountExpense, ParentCode: "90"},
		{Code: "90.03", Name: "НДС с продаж", Type: ledger.AccountExpense, ParentCode: "90"},
		{Code: "91", Name: "Прочие доходы и расходы", Type: ledger.AccountIncome},
		{Code: "91.01", Name: "Прочие доходы", Type: ledger.AccountIncome, ParentCode: "91"},
		{Code: "91.02", Name: "Прочие расходы", Type: ledger.AccountExpense, ParentCode: "91"},
		{Code: "99", Name: "Прибыли и убытки", Type: ledger.AccountIncome},
		{Code: "001", Name: "Арендованные основные средства", Type: ledger.AccountOffBalance},
	}
}
