// Package api serves the warroom REST API: workflow runs, single incident
// orchestration, the approval queue and control of the background scan loop.
package api
