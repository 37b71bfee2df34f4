// Package broadcast pushes permission-change notifications over Redis
// pub/sub.
//
// # Overview
//
// When a role is assigned or removed, every affected user's cached grants
// are stale. The service layer calls the publisher, which fans a
// PermissionUpdate out to one channel per user:
//
//	orgkit:permissions:user:<id>
//
// Edge services subscribe on behalf of their connected clients and refresh
// sessions when an update arrives. Delivery is best effort: a failed
// broadcast is logged by the caller and never fails the mutation that
// triggered it.
package broadcast
