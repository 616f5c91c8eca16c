package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound calls (campaign config sync).
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
