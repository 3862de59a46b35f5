package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/oci"
	"github.com/joshyorko/bomforge/pretty"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/joshyorko/bomforge/settings"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push <document>",
	Short: "Push an SBOM document to an OCI registry.",
	Long: `Push an SBOM document to an OCI registry as a single layer artifact.

Credentials come from BOMFORGE_REGISTRY_USERNAME / BOMFORGE_REGISTRY_PASSWORD,
or OCI_* / DOCKER_* variables of the same shape.

Example:
  bomforge push sbom/Portal/CustomSoftwareSbom.json --registry ghcr.io/acme/sboms --tag portal-2.3.0`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if common.DebugFlag() {
			defer common.Stopwatch("Push command lasted").Report()
		}
		current := settings.Global
		pretty.Guard(len(current.Registry.URL) > 0, 1, "No registry given. Use --registry or registry.url in configuration.")

		ctx := context.Background()
		store := sbom.NewStore()
		content, err := store.Read(ctx, args[0])
		pretty.Guard(err == nil, 1, "%v", err)
		document, err := sbom.ParseDocument(content)
		pretty.Guard(err == nil, 1, "Refusing to push %q: %v", args[0], err)

		client := oci.NewClientFromEnv(current.Registry.URL, current.Registry.Tag)
		result, err := client.Push(ctx, oci.Artifact{
			Title:     filepath.Base(args[0]),
			MediaType: sbom.MediaType,
			Version:   document.Version,
			Content:   content,
		})
		pretty.Guard(err == nil, 3, "Failed to push SBOM to registry: %v", err)

		if jsonFlag {
			nice, err := json.MarshalIndent(result, "", "  ")
			pretty.Guard(err == nil, 4, "%v", err)
			common.Stdout("%s\n", nice)
		} else {
			common.Log("SBOM pushed to %s:%s", result.Registry, result.Tag)
			common.Log("Digest: %s", result.Digest)
		}
		pretty.Ok()
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
	flags := pushCmd.Flags()
	flags.StringP("registry", "r", "", "OCI registry and repository, for example ghcr.io/org/sboms.")
	flags.StringP("tag", "t", "latest", "Tag for the pushed artifact.")
	flags.BoolVarP(&jsonFlag, "json", "j", false, "Output in JSON format.")

	bindSetting(settings.RegistryKey, flags.Lookup("registry"))
	bindSetting(settings.RegistryTagKey, flags.Lookup("tag"))
}
