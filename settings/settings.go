// Package settings holds bomforge configuration: built-in defaults,
// overridden by bomforge.yaml, BOMFORGE_* environment variables and
// command line flags, in that order.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/project"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/joshyorko/bomforge/scanner"
	"github.com/spf13/viper"
)

const (
	ConfigName = "bomforge"
	EnvPrefix  = "BOMFORGE"

	ManifestKey           = "manifest"
	ProductVersionKey     = "product_version"
	ProprietaryLicenseKey = "proprietary_license"
	OutputDirectoryKey    = "output_directory"
	DocumentVersionKey    = "document_version"
	ToolNameKey           = "tool.name"
	ToolVersionKey        = "tool.version"
	FilesystemScannerKey  = "scanner.filesystem"
	ImageScannerKey       = "scanner.image"
	WorkersKey            = "workers"
	RegistryKey           = "registry.url"
	RegistryTagKey        = "registry.tag"
	ThirdPartyFeaturesKey = "features.third_party"
	LibraryFeaturesKey    = "features.library"
	DefaultVersionKey     = "features.default_version"
)

var Global *Settings

type Tool struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type Scanner struct {
	Filesystem string `mapstructure:"filesystem"`
	Image      string `mapstructure:"image"`
}

type Registry struct {
	URL string `mapstructure:"url"`
	Tag string `mapstructure:"tag"`
}

type Settings struct {
	Manifest           string                    `mapstructure:"manifest"`
	ProductVersion     string                    `mapstructure:"product_version"`
	ProprietaryLicense string                    `mapstructure:"proprietary_license"`
	OutputDirectory    string                    `mapstructure:"output_directory"`
	DocumentVersion    int                       `mapstructure:"document_version"`
	Tool               Tool                      `mapstructure:"tool"`
	Scanner            Scanner                   `mapstructure:"scanner"`
	Workers            int                       `mapstructure:"workers"`
	Registry           Registry                  `mapstructure:"registry"`
	Features           project.FeatureClassifier `mapstructure:"features"`
}

// New returns a viper instance with every key defaulted and environment
// lookup enabled. configFile may be empty to search the working directory.
func New(configFile string) *viper.Viper {
	config := viper.New()
	classifier := project.DefaultClassifier()
	config.SetDefault(ManifestKey, "projects.yaml")
	config.SetDefault(ProductVersionKey, "")
	config.SetDefault(ProprietaryLicenseKey, sbom.DefaultProprietaryLicense)
	config.SetDefault(OutputDirectoryKey, "sbom")
	config.SetDefault(DocumentVersionKey, 1)
	config.SetDefault(ToolNameKey, common.Product)
	config.SetDefault(ToolVersionKey, common.Version)
	config.SetDefault(FilesystemScannerKey, scanner.DefaultFilesystemTemplate)
	config.SetDefault(ImageScannerKey, scanner.DefaultImageTemplate)
	config.SetDefault(WorkersKey, 0)
	config.SetDefault(RegistryKey, "")
	config.SetDefault(RegistryTagKey, "latest")
	config.SetDefault(ThirdPartyFeaturesKey, classifier.ThirdParty)
	config.SetDefault(LibraryFeaturesKey, classifier.Library)
	config.SetDefault(DefaultVersionKey, classifier.DefaultVersion)

	if len(configFile) > 0 {
		config.SetConfigFile(configFile)
	} else {
		config.SetConfigName(ConfigName)
		config.SetConfigType("yaml")
		config.AddConfigPath(".")
	}
	config.SetEnvPrefix(EnvPrefix)
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	return config
}

// Read loads the configuration file if there is one. A missing file in the
// search path is fine; an explicitly named file must exist.
func Read(config *viper.Viper) error {
	err := config.ReadInConfig()
	notFound := viper.ConfigFileNotFoundError{}
	if errors.As(err, &notFound) {
		common.Debug("No %s configuration file found, using defaults.", ConfigName)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	common.Debug("Using configuration from %s.", config.ConfigFileUsed())
	return nil
}

// Summon reads config into a Settings value and makes it Global.
func Summon(config *viper.Viper) (*Settings, error) {
	result := &Settings{}
	err := config.Unmarshal(result)
	if err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	Global = result
	return result, nil
}

func (it *Settings) Classifier() *project.FeatureClassifier {
	features := it.Features
	return &features
}

func (it *Settings) Defaults() sbom.Defaults {
	return sbom.Defaults{
		ProductVersion:     it.ProductVersion,
		ProprietaryLicense: it.ProprietaryLicense,
	}
}

func (it *Settings) SbomTool() sbom.Tool {
	return sbom.Tool{
		Name:    it.Tool.Name,
		Version: it.Tool.Version,
	}
}
