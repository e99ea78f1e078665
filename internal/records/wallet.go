package records

import "github.com/roach88/creditors/internal/canonical"

// LogStream is the log stream cursor of a wallet.
type LogStream struct {
	// LatestEntryID is the entryId of the last applied log entry.
	LatestEntryID int64 `json:"latestEntryId"`
	// ForthcomingURI is the page to read next.
	ForthcomingURI string `json:"forthcoming"`
	// IsBroken is set when a gap was detected. Only reprovisioning clears it.
	IsBroken bool `json:"isBroken"`
	// LoadedTransfers is set once the transfer bootstrap has completed.
	LoadedTransfers bool `json:"loadedTransfers"`
}

// Wallet is the local record of a user's wallet: its entrypoints and the
// log stream cursor.
type Wallet struct {
	UserID      int64            `json:"userId"`
	Entrypoints canonical.Wallet `json:"entrypoints"`
	LogStream   LogStream        `json:"logStream"`
}
