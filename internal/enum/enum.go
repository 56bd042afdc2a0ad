package enum

// ── Group A: State machines (Status column of the order ledgers) ──

const (
	OrderStatusPending   = "Pending"
	OrderStatusPreparing = "Preparing"
	OrderStatusDelivered = "Delivered"
)

// ── Group B: Access (role column of users.csv) ──

const (
	UserRoleCustomer = "CUSTOMER"
	UserRoleStaff    = "STAFF"
	UserRoleAdmin    = "ADMIN"
)

// ── Group C: Menu labels (Type column of menu_items.csv) ──

const (
	DietaryVegetarian    = "Vegetarian"
	DietaryNonVegetarian = "Non-Vegetarian"
)

// ── Group D: Realtime event types ──

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventPendingSnapshot    = "orders.pending"
)
