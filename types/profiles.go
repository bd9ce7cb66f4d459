package types

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/kirklandnuts/ontology-batch-query/logger"
	"gopkg.in/yaml.v3"
)

const DefaultMatchLimit = 25

// Profile is a named set of query parameters stored as <name>.yaml.
type Profile struct {
	Name        string        `yaml:"-" json:"name"`
	FilePath    string        `yaml:"-" json:"file_path"`
	Scope       OntologyScope `yaml:"scope" json:"scope"`
	Limit       int           `yaml:"limit" json:"limit"`
	OmitParents bool          `yaml:"omit_parents" json:"omit_parents"`
}

func (p Profile) MatchLimit() int {
	if p.Limit <= 0 {
		return DefaultMatchLimit
	}
	return p.Limit
}

var ErrProfileNotFound = errors.New("profile not found")

func LoadProfiles(dirPath string) ([]Profile, error) {
	obqLogger := logger.NewLogger("LoadProfiles")

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	profileChan := make(chan Profile, len(files))
	for _, f := range files {
		// Skip dirs and non-yaml files
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}

		wg.Add(1)
		go func(file os.DirEntry) {
			defer wg.Done()
			profile := Profile{
				Name:     strings.TrimSuffix(file.Name(), ".yaml"),
				FilePath: path.Join(dirPath, file.Name()),
			}
			buf, err := os.ReadFile(profile.FilePath)
			if err != nil {
				obqLogger.Err(err).Str("file", profile.FilePath).Msg("Could not read profile")
				return
			}
			if err := yaml.Unmarshal(buf, &profile); err != nil {
				obqLogger.Err(err).Str("file", profile.FilePath).Msg("Could not parse profile")
				return
			}
			if profile.Limit < 0 {
				obqLogger.Err(errors.New("negative match limit")).Str("file", profile.FilePath).Msg("Skipping profile")
				return
			}

			profileChan <- profile
		}(f)
	}

	go func() {
		wg.Wait()
		close(profileChan)
	}()

	profiles := make([]Profile, 0, len(profileChan))
	for profile := range profileChan {
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func FindProfile(dirPath string, name string) (Profile, error) {
	profiles, err := LoadProfiles(dirPath)
	if err != nil {
		return Profile{}, err
	}
	for _, profile := range profiles {
		if profile.Name == name {
			return profile, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q in %s", ErrProfileNotFound, name, dirPath)
}
