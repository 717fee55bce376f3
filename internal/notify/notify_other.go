//go:build !linux

package notify

import "errors"

// New is unavailable off Linux; callers fall back to Disabled.
func New() (Notifier, error) {
	return nil, errors.New("notify: desktop notifications not supported on this platform")
}
