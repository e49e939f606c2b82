package entity

// Vec3 is a position or direction in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// MouseEvent describes a pointer interaction with an entity.
type MouseEvent struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Button    string `json:"button"`
	IsLeft    bool   `json:"isLeftButton"`
	IsRight   bool   `json:"isRightButton"`
	IsMiddle  bool   `json:"isMiddleButton"`
	IsShifted bool   `json:"isShifted"`
	IsAlted   bool   `json:"isAlted"`
}

// CollisionType is the phase of a contact between two entities.
type CollisionType string

const (
	CollisionStart    CollisionType = "start"
	CollisionContinue CollisionType = "continue"
	CollisionEnd      CollisionType = "end"
)

// Collision describes contact between two entities.
type Collision struct {
	Type        CollisionType `json:"type"`
	IDA         ID            `json:"idA"`
	IDB         ID            `json:"idB"`
	Penetration Vec3          `json:"penetration"`
	Contact     Vec3          `json:"contactPoint"`
	Velocity    Vec3          `json:"velocityChange"`
}

// Event categories published by the upstream entity source.
const (
	EventEnterEntity          = "enterEntity"
	EventLeaveEntity          = "leaveEntity"
	EventMousePressOnEntity   = "mousePressOnEntity"
	EventMouseMoveOnEntity    = "mouseMoveOnEntity"
	EventMouseReleaseOnEntity = "mouseReleaseOnEntity"
	EventClickDownOnEntity    = "clickDownOnEntity"
	EventHoldingClickOnEntity = "holdingClickOnEntity"
	EventClickReleaseOnEntity = "clickReleaseOnEntity"
	EventHoverEnterEntity     = "hoverEnterEntity"
	EventHoverOverEntity      = "hoverOverEntity"
	EventHoverLeaveEntity     = "hoverLeaveEntity"
	EventCollisionWithEntity  = "collisionWithEntity"
)

// EventCategories lists every event category a host wires on first use,
// in the order they are connected.
var EventCategories = []string{
	EventEnterEntity,
	EventLeaveEntity,
	EventMousePressOnEntity,
	EventMouseMoveOnEntity,
	EventMouseReleaseOnEntity,
	EventClickDownOnEntity,
	EventHoldingClickOnEntity,
	EventClickReleaseOnEntity,
	EventHoverEnterEntity,
	EventHoverOverEntity,
	EventHoverLeaveEntity,
	EventCollisionWithEntity,
}

// IsEventCategory reports whether name is one of EventCategories.
func IsEventCategory(name string) bool {
	for _, c := range EventCategories {
		if c == name {
			return true
		}
	}
	return false
}
