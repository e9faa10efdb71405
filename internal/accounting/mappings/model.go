package mappings

// Accounts lists the account codes for one scope of the account map.
type Accounts struct {
	Inventory      string `mapstructure:"inventory"`
	COGS           string `mapstructure:"cogs"`
	Payable        string `mapstructure:"payable"`
	AdjustmentGain string `mapstructure:"adjustment_gain"`
	AdjustmentLoss string `mapstructure:"adjustment_loss"`
	// Offset overrides the inbound credit account for a move type.
	Offset string `mapstructure:"offset"`
	// Expense overrides the outbound debit account for a move type.
	Expense string `mapstructure:"expense"`
}

// Config is the account-map file layout.
type Config struct {
	Default   Accounts            `mapstructure:"default"`
	MoveTypes map[string]Accounts `mapstructure:"move_types"`
	// Warehouses overrides the inventory account per warehouse id.
	Warehouses map[string]Accounts `mapstructure:"warehouses"`
}

// ItemAccounts carries the per-item defaults from master data.
type ItemAccounts struct {
	Inventory string
	Expense   string
}
