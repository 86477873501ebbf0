package cmd

import (
	"github.com/assetnote/n1qlback/internal/bench"
	"github.com/assetnote/n1qlback/pkg/context"
	"github.com/assetnote/n1qlback/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	queryFile  = ""
	numThreads = bench.DefaultWorkers
	errorLog   = ""
	timings    = false
	reshuffle  = false
	seed       int64
	rateLimit  float64
	maxQueries = 0
	progress   = false
	noANSI     = false
	headers    = []string{}
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run -f queries.json [ -t threads ]",
	Short: "replay a file of queries against the cluster",
	Long: `this will replay the queries in the query file against the query service
of the cluster with a number of concurrent threads until interrupted.

The query file contains one JSON object per line. Each object is sent as the body
of a query service request. An optional "n1qlback" member controls how the query is
executed and is removed before sending, e.g.

	{"statement":"SELECT * FROM default WHERE id = $1","args":[42],"n1qlback":{"prepare":true}}

Each thread shuffles its own copy of the queries once and then replays that order
forever. Every second the number of queries and rows per second and the total number
of errors are printed. The first interrupt stops the threads after their in-flight
query, the second exits immediately.

usage:
n1qlback run -f queries.json -t 16 -U cb1.local,cb2.local -u Administrator -P password
n1qlback run -f queries.json -T -e errors.log --rate 500
`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := []bench.RunOption{
			bench.Workers(numThreads),
			bench.Hosts(viper.GetStringSlice("host")),
			bench.Credentials(viper.GetString("username"), viper.GetString("password")),
			bench.TLS(viper.GetBool("tls"), viper.GetBool("insecure")),
			bench.Timeout(viper.GetDuration("timeout")),
			bench.MaxConnsPerNode(viper.GetInt("max-conns")),
			bench.AddHeaders(headers),
			bench.ErrorLog(errorLog),
			bench.Timings(timings),
			bench.Reshuffle(reshuffle),
			bench.Seed(seed),
			bench.RateLimit(rateLimit),
			bench.MaxQueries(maxQueries),
			bench.ShowProgress(progress),
			bench.NoANSI(noANSI),
		}

		if err := bench.RunFile(context.Context(), queryFile, opts...); err != nil {
			log.Fatal().Err(err).Msg("failed to run queries")
		}
	},
}

// addConnectionFlags registers the flags shared by every command that talks to the cluster
func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("host", "U", []string{bench.DefaultHost}, "bootstrap hosts to fetch the cluster map from. host or host:port, repeatable or comma separated")
	cmd.Flags().StringP("username", "u", "", "username for the cluster")
	cmd.Flags().StringP("password", "P", "", "password for the cluster")
	cmd.Flags().Bool("tls", false, "use https for the cluster map and the secure query port")
	cmd.Flags().Bool("insecure", false, "skip certificate verification when using tls")
	cmd.Flags().Duration("timeout", bench.DefaultTimeout, "timeout to use on all requests")
	cmd.Flags().Int("max-conns", 0, "max connections to a single query node. 0 uses the client default")
}

// bindConnectionFlags binds the connection flags of the command being run so they can also come from
// the config file or N1QLBACK_ environment variables
func bindConnectionFlags(cmd *cobra.Command) {
	for _, name := range []string{"host", "username", "password", "tls", "insecure", "timeout", "max-conns"} {
		viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&queryFile, "queryfile", "f", queryFile, "file containing one JSON query per line")
	runCmd.Flags().IntVarP(&numThreads, "num-threads", "t", numThreads, "number of concurrent threads issuing queries")
	runCmd.Flags().StringVarP(&errorLog, "error-log", "e", errorLog, "file to write failed queries and their responses to")
	runCmd.Flags().BoolVarP(&timings, "timings", "T", timings, "record query latency and print a histogram with every report")
	runCmd.Flags().BoolVar(&reshuffle, "reshuffle", reshuffle, "shuffle again after every pass over the queries instead of only once")
	runCmd.Flags().Int64Var(&seed, "seed", seed, "seed for the per thread shuffle. 0 seeds from the clock")
	runCmd.Flags().Float64Var(&rateLimit, "rate", rateLimit, "maximum queries per second across all threads. 0 is unlimited")
	runCmd.Flags().IntVar(&maxQueries, "max-queries", maxQueries, "stop each thread after this many queries. 0 runs until interrupted")
	runCmd.Flags().BoolVar(&progress, "progress", progress, "show a progress bar while loading the query file")
	runCmd.Flags().BoolVar(&noANSI, "no-ansi", noANSI, "never redraw the report in place")
	runCmd.Flags().StringSliceVarP(&headers, "header", "H", headers, "headers to add to requests")
	runCmd.MarkFlagRequired("queryfile")

	addConnectionFlags(runCmd)
	runCmd.PreRun = func(cmd *cobra.Command, args []string) {
		bindConnectionFlags(cmd)
	}
}
