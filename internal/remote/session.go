package remote

import (
	"github.com/google/uuid"

	"qbank/internal/kvcache"
)

// Session identifies the signed-in user for sync and device registration.
type Session struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
}

// EnsureDeviceID returns this device's stable identifier, generating and
// persisting one on first use. The id survives sign-out but not a full
// progress reset.
func EnsureDeviceID(cache *kvcache.Cache) (string, error) {
	var deviceID string
	ok, err := cache.Get(kvcache.KeyDeviceID, &deviceID)
	if err != nil {
		return "", err
	}
	if ok && deviceID != "" {
		return deviceID, nil
	}

	deviceID = uuid.NewString()
	if err := cache.Set(kvcache.KeyDeviceID, deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}
