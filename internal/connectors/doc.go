// Package connectors groups the source connectors. Each subpackage
// implements driven.Connector for one system:
//
//   - jira: issue tracker records from the Jira search API
//   - confluence: wiki page records from the Confluence content API
//   - github: issue tracker records from GitHub issues
//
// restapi holds the HTTP client, rate limiter and error types they share.
package connectors
