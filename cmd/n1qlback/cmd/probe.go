package cmd

import (
	"fmt"

	"github.com/assetnote/n1qlback/internal/bench"
	"github.com/assetnote/n1qlback/pkg/context"
	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe [ -U host ]",
	Short: "check that the cluster runs the query service",
	Long: `this fetches the cluster map from the bootstrap hosts and lists every node
advertising the query service. With --tls only nodes with the secure query port
are listed. No queries are issued`,
	Args: cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindConnectionFlags(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		nodes, err := bench.Probe(context.Context(),
			bench.Hosts(viper.GetStringSlice("host")),
			bench.Credentials(viper.GetString("username"), viper.GetString("password")),
			bench.TLS(viper.GetBool("tls"), viper.GetBool("insecure")),
			bench.Timeout(viper.GetDuration("timeout")),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("probe failed")
		}
		for _, n := range nodes {
			fmt.Println(n.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	addConnectionFlags(probeCmd)
}
