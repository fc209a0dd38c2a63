// Package alerts implements the rule evaluation engine and webhook delivery
// for qubit health alerting. Rules are evaluated against each qubit of a
// simulation run; webhooks are delivered to Teams, Slack, PagerDuty, or
// generic HTTP targets.
package alerts
