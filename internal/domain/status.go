package domain

import "regexp"

// List of possible courier availability statuses
const (
	StatusAvailable CourierStatus = "available"
	StatusBusy      CourierStatus = "busy"
	StatusOff       CourierStatus = "off"
)

// List of possible courier account statuses
const (
	AccountActive    AccountStatus = "active"
	AccountInactive  AccountStatus = "inactive"
	AccountSuspended AccountStatus = "suspended"
)

// List of possible courier transport types
const (
	TransportTypeFoot    CourierTransportType = "on_foot"
	TransportTypeScooter CourierTransportType = "scooter"
	TransportTypeCar     CourierTransportType = "car"
)

// List of allowed statuses
var allowedStatuses = [...]CourierStatus{
	StatusAvailable, StatusBusy, StatusOff,
}

var allowedAccountStatuses = [...]AccountStatus{
	AccountActive, AccountInactive, AccountSuspended,
}

var allowedTransportTypes = [...]CourierTransportType{
	TransportTypeFoot, TransportTypeScooter, TransportTypeCar,
}

// Valid checks if the CourierStatus is valid
func (s CourierStatus) Valid() bool {
	for _, v := range allowedStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid checks if the AccountStatus is valid
func (s AccountStatus) Valid() bool {
	for _, v := range allowedAccountStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid checks if the CourierTransportType is valid
func (t CourierTransportType) Valid() bool {
	for _, v := range allowedTransportTypes {
		if t == v {
			return true
		}
	}
	return false
}

// reZone is a regex to validate zone identifiers
var reZone = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateZoneID validates the zone identifier format
func ValidateZoneID(s string) bool {
	return reZone.MatchString(s)
}
