package store

// Collection names tracked by the sync layer. Shared by the local store, the
// sync engine and the remote adapters.
const (
	CollectionStaff         = "staff_accounts"
	CollectionCustomers     = "customers"
	CollectionEntries       = "collection_entries"
	CollectionExpenses      = "expense_entries"
	CollectionNotifications = "notifications"
	CollectionSettings      = "company_settings"
	CollectionGoals         = "goal_configs"
)

// Tracked returns every collection the sync engine mirrors.
func Tracked() []string {
	return []string{
		CollectionStaff,
		CollectionCustomers,
		CollectionEntries,
		CollectionExpenses,
		CollectionNotifications,
		CollectionSettings,
		CollectionGoals,
	}
}
