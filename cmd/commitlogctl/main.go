// Command commitlogctl is a small demo/inspection tool for a CommitLog
// store: it can append a message and read one back by physical offset,
// enough to exercise the Append Engine end to end without a broker
// listening on the network.
package main

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"commitlog/internal/commitlog"
	"commitlog/internal/record"
	"commitlog/internal/replication"
	"commitlog/internal/retention"
	"commitlog/internal/schedule"
	"commitlog/internal/segment"
)

func main() {
	dir := pflag.StringP("dir", "d", "./data", "store directory")
	topic := pflag.StringP("topic", "t", "demo", "topic name")
	queueID := pflag.Uint32P("queue", "q", 0, "queue id")
	sync := pflag.Bool("sync", false, "use sync flush instead of async")
	segmentBytes := pflag.Int64("segment-bytes", 64*1024*1024, "segment max size in bytes")
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 {
		log.Fatal("usage: commitlogctl [flags] put <body> | get <offset>")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	segCfg := segment.DefaultConfig()
	segCfg.SegmentMaxBytes = *segmentBytes

	store, err := commitlog.OpenFileSegmentStore(*dir, segCfg, 16, nil, logger)
	if err != nil {
		log.Fatalf("opening segment store: %v", err)
	}

	checkpoint := commitlog.NewFileCheckpoint(*dir)
	sched := schedule.New()

	cfg := commitlog.Config{StorePath: *dir}
	if *sync {
		cfg.FlushDiskType = commitlog.FlushDiskSync
	}

	cleaner := retention.NewRetentionCleaner(retention.CleanerConfig{
		CheckInterval: 10 * time.Minute,
		MaxAge:        cfg.WithDefaults().RetentionMaxAge,
	}, clock.New(), logger)

	cl := commitlog.New(cfg, store, checkpoint, nil, sched, replication.NoopReplicator{}, nil, logger)
	cleaner.Register(cl)

	if err := cl.Start(); err != nil {
		log.Fatalf("starting commit log: %v", err)
	}
	cleaner.Start()
	defer func() {
		cleaner.Stop()
		if err := cl.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	switch args[0] {
	case "put":
		if len(args) < 2 {
			log.Fatal("usage: commitlogctl put <body>")
		}
		runPut(cl, *topic, *queueID, args[1])
	case "get":
		if len(args) < 2 {
			log.Fatal("usage: commitlogctl get <offset>")
		}
		runGet(cl, args[1])
	default:
		log.Fatalf("unknown command %q", args[0])
	}
}

func runPut(cl *commitlog.CommitLog, topic string, queueID uint32, body string) {
	r := &record.Record{
		Topic:         topic,
		QueueID:       queueID,
		Body:          []byte(body),
		BornTimestamp: time.Now().UnixMilli(),
		BornHost:      record.HostAddress{IP: nil, Port: 0},
		StoreHost:     record.HostAddress{IP: nil, Port: 0},
	}

	result := cl.PutMessage(r)
	if !result.OK() {
		log.Fatalf("put failed: status=%s err=%v", result.Status, result.Err)
	}
	fmt.Printf("stored at physicalOffset=%d queueOffset=%d status=%s\n",
		result.PhysicalOffset, result.QueueOffset, result.Status)
}

func runGet(cl *commitlog.CommitLog, offsetArg string) {
	offset, err := strconv.ParseInt(offsetArg, 10, 64)
	if err != nil {
		log.Fatalf("invalid offset %q: %v", offsetArg, err)
	}

	rec, err := cl.GetMessage(offset)
	if err != nil {
		log.Fatalf("get failed: %v", err)
	}
	fmt.Printf("topic=%s queue=%d queueOffset=%d body=%s\n", rec.Topic, rec.QueueID, rec.QueueOffset, rec.Body)
}
