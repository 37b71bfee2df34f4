// Package audit records access-control events to pluggable sinks.
//
// # Overview
//
// Every mutation in the access-control core (role assignment, removal,
// organization switching) and every security-relevant failure (denied org
// access, failed actor resolution) produces an audit event. Events carry the
// acting user, the tenant context, the affected entity, and free-form
// metadata.
//
// # Sinks
//
// Three Logger implementations are provided:
//
//	NoOpLogger  - discards everything; the default when nothing is wired
//	DBLogger    - writes audit_log rows in PostgreSQL, searchable by
//	              user, org, event type, status, and time range
//	FileLogger  - appends JSON lines to a file through logrus
//
// MultiLogger fans out to several sinks at once:
//
//	dbSink, _ := audit.NewDBLogger(db)
//	fileSink, _ := audit.NewFileLogger(audit.DefaultFileLoggerConfig())
//	logger := audit.NewMultiLogger(dbSink, fileSink)
//
// # Retention
//
// The DB sink grows without bound unless swept. RetentionSweeper deletes
// events past the policy window on a cron schedule:
//
//	sweeper := audit.NewRetentionSweeper(dbSink, audit.DefaultRetentionPolicy(), log)
//	sweeper.Start()
//	defer sweeper.Stop()
package audit
