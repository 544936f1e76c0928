package actions

import "github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"

func incidentActions() []Action {
	return []Action{
		fetchByIDs("get_behaviors", "Get behavior details", catalog.IncidentsBehaviors, "behaviors", "behaviors"),
		fetchByIDs("get_incidents", "Get incident details", catalog.IncidentsGet, "incidents", "incidents"),
	}
}
