package services

import "strings"

// Object storage key layout:
//
//	{prefix}/{partition}/{shard}.parquet   data partitions
//	{prefix}/{partition}/.tmp-{shard}      unpublished temp objects
//	{prefix}/_manifest.json                known partition keys
//	{prefix}/_snapshots/{version}.snapshot replica snapshots
//	{prefix}/_snapshots/latest             latest snapshot pointer
//
// The exporter owns this layout; the sync engine and refresher consume
// it.

func joinKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, strings.Trim(p, "/"))
		}
	}
	return strings.Join(kept, "/")
}

func dataKey(prefix, partition, shard string) string {
	return joinKey(prefix, partition, shard+".parquet")
}

func tempKey(prefix, partition, shard string) string {
	return joinKey(prefix, partition, ".tmp-"+shard)
}

func partitionPrefix(prefix, partition string) string {
	return joinKey(prefix, partition) + "/"
}

func manifestKey(prefix string) string {
	return joinKey(prefix, "_manifest.json")
}

func snapshotKey(prefix, version string) string {
	return joinKey(prefix, "_snapshots", version+".snapshot")
}

func latestKey(prefix string) string {
	return joinKey(prefix, "_snapshots", "latest")
}
