package analysis

import (
	"fmt"
	"time"
)

// capability category: emitted once when any declared dependency is a member.
type capability struct {
	flagType    FlagType
	severity    Severity
	description string
	members     map[string]struct{}
}

var capabilities = []capability{
	{
		flagType:    FlagNetworking,
		severity:    SeverityMedium,
		description: "Package has networking dependencies - review network usage",
		members:     nameSet("reqwest", "hyper", "curl", "ureq", "attohttpc"),
	},
	{
		flagType:    FlagFileSystemAccess,
		severity:    SeverityLow,
		description: "Package has file system access dependencies",
		members:     nameSet("walkdir", "glob", "tempfile"),
	},
	{
		flagType:    FlagProcessExecution,
		severity:    SeverityHigh,
		description: "Package can execute external processes",
		members:     nameSet("tokio-process", "async-process"),
	},
}

const (
	recentPublicationWindow = 7 * 24 * time.Hour
	lowDownloadThreshold    = 1000
)

// Deriver computes metadata flags without any deep-analysis call.
type Deriver struct {
	classifier *Classifier
	now        func() time.Time
}

func NewDeriver(classifier *Classifier, now func() time.Time) *Deriver {
	if now == nil {
		now = time.Now
	}
	return &Deriver{classifier: classifier, now: now}
}

// Derive emits flags for name similarity, declared capabilities, and
// registry metadata. meta may be nil when the registry lookup failed or
// timed out; that never fails the unit.
func (d *Deriver) Derive(unit Unit, meta *RegistryMetadata) []MetadataFlag {
	var flags []MetadataFlag

	if popular := d.classifier.Typosquat(unit.Name); popular != "" {
		flags = append(flags, MetadataFlag{
			Type:        FlagTyposquatting,
			Description: fmt.Sprintf("Package name %q is similar to popular package %q", unit.Name, popular),
			Severity:    SeverityHigh,
		})
	}

	for _, c := range capabilities {
		for _, dep := range unit.Dependencies {
			if _, ok := c.members[dep]; ok {
				flags = append(flags, MetadataFlag{
					Type:        c.flagType,
					Description: c.description,
					Severity:    c.severity,
				})
				break
			}
		}
	}

	if meta != nil {
		if !meta.CreatedAt.IsZero() && d.now().Sub(meta.CreatedAt) <= recentPublicationWindow {
			flags = append(flags, MetadataFlag{
				Type:        FlagRecentPublication,
				Description: "Package was published very recently, could be a 0-day injection",
				Severity:    SeverityMedium,
			})
		}
		// A missing download count is itself suspicious.
		if meta.Downloads == nil || *meta.Downloads < lowDownloadThreshold {
			flags = append(flags, MetadataFlag{
				Type:        FlagLowDownloads,
				Description: "Package has unusually low download count for its age",
				Severity:    SeverityLow,
			})
		}
	}

	return flags
}
