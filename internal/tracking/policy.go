package tracking

import "github.com/angelmondragon/trackline-backend/pkg/enums"

// CanPublish is the single authorization rule consulted by every publish
// path: only delivery partners may emit location and status events.
func CanPublish(identity Identity, kind EventKind) bool {
	switch kind {
	case EventLocationUpdate, EventDeliveryStatus:
		return identity.Role == enums.ActorRoleDelivery
	default:
		return false
	}
}
