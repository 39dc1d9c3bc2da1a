package domain

// ExpenseCategories is the fixed taxonomy for EXPENSE transactions. The
// receipt extraction prompt embeds this list verbatim so model output needs
// no separate classification step.
var ExpenseCategories = []string{
	"housing",
	"transportation",
	"groceries",
	"utilities",
	"entertainment",
	"food",
	"shopping",
	"healthcare",
	"education",
	"personal",
	"travel",
	"insurance",
	"gifts",
	"bills",
	"other-expense",
}

// IncomeCategories is the fixed taxonomy for INCOME transactions.
var IncomeCategories = []string{
	"salary",
	"freelance",
	"investments",
	"business",
	"rental",
	"other-income",
}

// CategoriesFor returns the taxonomy for the given transaction type, or nil
// for an unknown type.
func CategoriesFor(t TransactionType) []string {
	switch t {
	case Income:
		return IncomeCategories
	case Expense:
		return ExpenseCategories
	default:
		return nil
	}
}

// ValidCategory reports whether name belongs to the taxonomy of the given
// transaction type.
func ValidCategory(t TransactionType, name string) bool {
	for _, c := range CategoriesFor(t) {
		if c == name {
			return true
		}
	}
	return false
}
