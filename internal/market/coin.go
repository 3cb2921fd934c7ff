package market

import "strings"

// FormatCoin upper-cases a coin name, keeping a HIP-3 dex prefix as typed
// (xyz:copper becomes xyz:COPPER).
func FormatCoin(coin string) string {
	coin = strings.TrimSpace(coin)
	if prefix, name, ok := strings.Cut(coin, ":"); ok {
		return prefix + ":" + strings.ToUpper(name)
	}
	return strings.ToUpper(coin)
}

// FileSafeCoin replaces the HIP-3 separator so the name can be used in paths.
func FileSafeCoin(coin string) string {
	return strings.ReplaceAll(FormatCoin(coin), ":", "_")
}
