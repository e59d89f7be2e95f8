package domain

// LaunchCodeRecord is what the launch code store keeps against the hashed
// code. The role snapshot is deliberately a stored field, not a live lookup:
// role changes between issuance and redemption must not alter what the
// device token receives.
type LaunchCodeRecord struct {
	UserID           string   `json:"userId"`
	RoleSnapshot     []string `json:"roleSnapshot"`
	BrowserSessionID string   `json:"browserSessionId,omitempty"`
	IP               string   `json:"ip,omitempty"`
	UAHash           string   `json:"uaHash,omitempty"`
	CreatedAt        int64    `json:"createdAt"` // unix seconds
	TTL              int      `json:"ttl"`       // seconds
}

// IssuedLaunchCode is returned to the web client on a run request.
type IssuedLaunchCode struct {
	Code      string `json:"code"`
	LaunchURI string `json:"launchUri"`
	ExpiresIn int    `json:"expiresIn"`
}
