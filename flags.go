package main

import (
	"flag"
)

var variantName = flag.String(
	"variant",
	"default",
	"the dataset variant to load, one of: default, de, en, es, fr, it, ja",
)

var cacheDir = flag.String(
	"cache-dir",
	"",
	"directory downloaded dataset files are cached in. defaults to $DATASET_CACHE_DIR, or the system temp dir",
)

var dataDir = flag.String(
	"data-dir",
	"",
	"directory holding bundled dataset files. defaults to $LAMBADA_DATA_DIR, or ./data",
)

var offline = flag.Bool(
	"offline",
	false,
	"never download; fail if a remote dataset file isn't already cached",
)

var fetchAttempts = flag.Int(
	"fetch-attempts",
	0,
	"how many times to attempt a download when the server errors. defaults to $LAMBADA_FETCH_ATTEMPTS, or 3",
)

var showProgress = flag.Bool(
	"progress",
	true,
	"render progress bars on stderr while downloading and exporting",
)

var outputFormat = flag.String(
	"format",
	"json",
	"output format for the info command, json or yaml",
)

var recordLimit = flag.Int(
	"limit",
	0,
	"the maximum number of records to print. 0 prints all of them",
)

var splitTarget = flag.Bool(
	"split-target",
	false,
	"also print each passage split into its context and target word",
)

var sampleSize = flag.Int(
	"n",
	10,
	"the number of records to sample",
)

var sampleSeed = flag.Uint64(
	"seed",
	42,
	"the seed used to sample records. the same seed always yields the same sample",
)

var sinkKind = flag.String(
	"sink",
	"parquet",
	"where to export records to, one of: parquet, mysql, turbopuffer",
)

var outputPath = flag.String(
	"out",
	"",
	"the parquet file to export to. defaults to lambada_<variant>.parquet",
)

var mysqlDsn = flag.String(
	"mysql-dsn",
	"",
	"the MySQL DSN to export records to. defaults to $MYSQL_DSN",
)

var mysqlTable = flag.String(
	"mysql-table",
	"lambada_records",
	"the MySQL table to export records to. created if it doesn't exist",
)

var apiKey = flag.String(
	"api-key",
	"",
	"the turbopuffer API key to export with. defaults to $TURBOPUFFER_API_KEY",
)

var baseURL = flag.String(
	"base-url",
	"",
	"the turbopuffer base URL to export to. defaults to $TURBOPUFFER_BASE_URL",
)

var namespacePrefix = flag.String(
	"namespace-prefix",
	"lambada_",
	"the prefix of the turbopuffer namespace records are exported to. namespaces are named <namespace-prefix><variant>",
)

var batchSize = flag.Int(
	"batch-size",
	1_000,
	"the number of records written per request by the mysql and turbopuffer sinks",
)
