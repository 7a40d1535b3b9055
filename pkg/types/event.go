package types

type EntityType string

const (
	EntityTypeSubscription EntityType = "subscription"
	EntityTypeAssignment   EntityType = "assignment"
	EntityTypeVisit        EntityType = "visit"
	EntityTypePayment      EntityType = "payment"
	EntityTypeInvoice      EntityType = "invoice"
	EntityTypeVehicle      EntityType = "vehicle"
)
