// Package wamp carries signaling messages over WAMP publish/subscribe. Every
// endpoint subscribes to its own topic on the router; session reports go to
// a topic the server listens on.
package wamp

import (
	"fmt"
)

const (
	// ReportsTopic receives the session reports.
	ReportsTopic = "rtcsession.reports"

	topicPrefix = "rtcsession.endpoint."
)

// Topic is the topic endpoint id subscribes to.
func Topic(id string) string {
	return fmt.Sprintf("%s%s", topicPrefix, id)
}
