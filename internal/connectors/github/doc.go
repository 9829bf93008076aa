// Package github implements a tracker connector over GitHub issues.
//
// Issues are emitted as tracker records shaped like the Jira records the
// pipeline already understands: the title is fields.summary, the markdown
// body is fields.description and images or PDFs linked from the body are
// listed under fields.attachment so the enricher can analyse them. Pull
// requests are skipped.
//
// # Repositories
//
// When Config.Repos is empty the connector discovers every repository the
// token can access (owned, collaborator and organisation member), skipping
// archived, forked and disabled ones. Otherwise only the listed
// "owner/name" repositories are fetched.
//
// # Rate Limiting
//
// Requests go through a [restapi.RateLimiter]: a token bucket keeps the
// client near 1.2 requests per second and the X-RateLimit-* headers make it
// wait for the reset once fewer than 100 requests remain.
//
// # Incremental Fetch
//
// Incremental windows map onto the issues API "since" parameter, which
// filters by update time.
package github
