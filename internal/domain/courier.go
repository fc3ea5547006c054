package domain

type (
	// CourierStatus represents the availability status of a courier.
	CourierStatus string
	// AccountStatus represents the account standing of a courier.
	AccountStatus string
	// CourierTransportType represents the transport type of a courier.
	CourierTransportType string
)

// Courier is a read model of the courier directory. The engine references
// couriers but never owns or mutates them.
type Courier struct {
	ID            int64
	Name          string
	Phone         string
	Status        CourierStatus
	Account       AccountStatus
	TransportType CourierTransportType
	Rating        float64
	ActiveLoad    int
	OpenShiftID   *int64
	Zones         []string
}

// Eligible reports whether the courier may be offered an order: active
// account, available status, and a currently open shift.
func (c Courier) Eligible() bool {
	return c.Account == AccountActive && c.Status == StatusAvailable && c.OpenShiftID != nil
}
