package models

import "time"

type Account struct {
	Username   string    `db:"username" json:"username"`
	ExternalID string    `db:"external_id" json:"externalId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// AccessToken is a persisted bearer credential. Only the hash of the bearer
// string is stored; the raw value is returned to the device once.
type AccessToken struct {
	TokenHash  string    `db:"token"`
	Username   string    `db:"username"`
	DeviceInfo string    `db:"device_info"`
	CreatedAt  time.Time `db:"created_at"`
}
