/*
Package session serializes access to conversation sessions.

Every inbound message, form submission and administrative call for one channel
address runs through Manager.Update or Manager.WithLock, so two messages from
the same party never interleave their read-modify-write cycles. Work for
different parties proceeds in parallel. When several replicas share a store,
a ports.DistributedLocker extends the guarantee across processes.
*/
package session
