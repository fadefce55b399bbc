package sqldb

// String is a row of the strings table.
type String struct {
	Key        string
	Locator    string
	Document   []byte
	ModifiedAt int64
}
