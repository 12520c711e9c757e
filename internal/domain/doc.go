// Package domain models the disaster-response data served by the Disaster
// Data Service and the pure operations the console derives from it.
//
// # Data Source
//
// The data service exposes seven read-only resources that together make up
// a [Snapshot]: disaster zones, flood areas, infrastructure damage,
// population displacement, alerts, a social-feed sample, and a flat
// statistics map. Records carry an optional "coordinates" object
// ({"lat": .., "lon": ..}); records without valid coordinates are still
// listed but are not placed on the map (see Renderable).
//
// Timestamps are ISO 8601 strings, usually without a zone offset. They are
// kept as strings and parsed on demand with [ParseTimestamp], which reads
// zone-less values as UTC.
//
// # Severity
//
// Zones and alerts carry a four-level severity. Urgency rank:
//
//	critical 1 | high 2 | medium 3 | low 4 | anything else 5
//
// Operators may attach a feedback code to a zone:
//
//	"1" minor | "2" moderate | "3" severe | "4" critical (confirmed)
//
// Code "4" overrides automated severity in [RankZones]. Feedback lives only
// in the console session; it is never written back to the data service.
//
// # Image Change Severity
//
// Image comparison reports a change percentage which is labelled:
//
//	> 50 CRITICAL | > 30 HIGH | > 15 MEDIUM | otherwise LOW
//
// # Geometry Conventions
//
// The data service uses [lng, lat] order for isoline vertices. The console
// renderer uses [lat, lng]. [Isoline] keeps vertices raw; the geometry
// package validates and swaps them.
package domain
