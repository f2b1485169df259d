package domain

import "github.com/shopspring/decimal"

// MoneyScale — количество знаков после запятой у всех денежных сумм (numeric(10,2) в БД).
const MoneyScale int32 = 2

// MinPaymentAmount — минимальная сумма платежа.
var MinPaymentAmount = decimal.New(1, -MoneyScale)

// RoundMoney приводит сумму к двум знакам после запятой.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// FormatMoney возвращает сумму строкой с ровно двумя знаками ("251.00").
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}
