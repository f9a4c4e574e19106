package router

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

// quotaGroupFile is the on-disk shape of quota-groups.yaml: a list of
// groups, each a list of (provider, model) members that share quota
// accounting (spec §4.4, SPEC_FULL.md's quota-group configuration file).
type quotaGroupFile struct {
	Groups [][]quotaGroupMember `yaml:"groups"`
}

type quotaGroupMember struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// LoadQuotaGroups reads quota-groups.yaml from path. A missing file yields
// an empty QuotaGroups (every credential is its own singleton group), not
// an error.
func LoadQuotaGroups(path string) (QuotaGroups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return QuotaGroups{}, nil
		}
		return nil, apierror.Config(err, "failed to read quota groups config")
	}
	var file quotaGroupFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apierror.Config(err, "quota groups config is invalid yaml")
	}

	groups := make(QuotaGroups)
	for _, group := range file.Groups {
		keys := make([]QuotaGroupKey, 0, len(group))
		for _, m := range group {
			keys = append(keys, QuotaGroupKey{Provider: store.Provider(m.Provider), Model: m.Model})
		}
		for _, k := range keys {
			groups[k] = keys
		}
	}
	return groups, nil
}
