/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/gravwell/gravwell/v3/ingest/log"
	"golang.org/x/sync/errgroup"

	"github.com/joergschultzelutter/mpad/aprs"
	"github.com/joergschultzelutter/mpad/cmdparse"
	"github.com/joergschultzelutter/mpad/decay"
	"github.com/joergschultzelutter/mpad/dispatch"
	"github.com/joergschultzelutter/mpad/ingress"
	"github.com/joergschultzelutter/mpad/providers"
	"github.com/joergschultzelutter/mpad/refdata"
	"github.com/joergschultzelutter/mpad/response"
	"github.com/joergschultzelutter/mpad/sched"
)

const (
	appName    = `mpad`
	appVersion = `0.1.0`

	defaultConfigLoc = `/etc/mpad/mpad.conf`

	mailPruneInterval = time.Hour
)

var (
	configLoc = flag.String("config-file", defaultConfigLoc, "Location of the configuration file")
	verbose   = flag.Bool("v", false, "Verbose logging to stderr")
	ver       = flag.Bool("version", false, "Print the version information and exit")

	lg *log.Logger
)

func main() {
	flag.Parse()
	if *ver {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}
	cfg, err := GetConfig(*configLoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get configuration: %v\n", err)
		os.Exit(-1)
	}
	if cfg.Global.Log_File != `` {
		if lg, err = log.NewFile(cfg.Global.Log_File); err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(-1)
		}
	} else {
		if lg, err = log.NewStderrLogger(``); err != nil {
			fmt.Fprintf(os.Stderr, "failed to open logger: %v\n", err)
			os.Exit(-1)
		}
	}
	if *verbose {
		lg.SetLevelString(`DEBUG`)
	} else if cfg.Global.Log_Level != `` {
		if err = lg.SetLevelString(cfg.Global.Log_Level); err != nil {
			lg.FatalCode(-1, "invalid log level", log.KV("level", cfg.Global.Log_Level))
		}
	}

	if err = os.MkdirAll(cfg.Global.Data_Dir, 0755); err != nil {
		lg.FatalCode(-1, "failed to create data directory", log.KV("dir", cfg.Global.Data_Dir), log.KVErr(err))
	}
	//one daemon per data directory; two would fight over the
	//reference files
	fl := flock.New(filepath.Join(cfg.Global.Data_Dir, `.mpad.lock`))
	if locked, err := fl.TryLock(); err != nil || !locked {
		lg.FatalCode(-1, "data directory is locked by another instance", log.KV("dir", cfg.Global.Data_Dir), log.KVErr(err))
	}
	defer fl.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg); err != nil {
		lg.FatalCode(-1, "daemon failed", log.KVErr(err))
	}
	lg.Info("shutdown complete")
}

func run(ctx context.Context, cfg *cfgType) error {
	sess, err := aprs.NewSession(aprs.SessionConfig{
		Server:       cfg.Global.Server,
		Callsign:     cfg.Global.Callsign,
		Passcode:     cfg.Global.Passcode,
		Filter:       cfg.Global.Filter,
		Agent:        appName,
		Version:      appVersion,
		MessageDelay: cfg.messageDelay,
		AckDelay:     cfg.ackDelay,
	}, lg)
	if err != nil {
		return err
	}

	cache, err := providers.OpenResultCache(filepath.Join(cfg.Global.Data_Dir, `results.db`))
	if err != nil {
		return err
	}
	defer cache.Close()

	store := refdata.NewStore(cfg.Global.Data_Dir)
	geocoder := providers.NewGeocoder(``, appName+`/`+appVersion, cache, lg)
	position := providers.NewPositionClient(``, cfg.Global.Position_API_Key, appName+`/`+appVersion, cache, lg)
	mailer := providers.NewMailClient(providers.MailConfig{
		SMTPHost:      cfg.Mail.SMTP_Host,
		SMTPPort:      cfg.Mail.SMTP_Port,
		IMAPHost:      cfg.Mail.IMAP_Host,
		IMAPPort:      cfg.Mail.IMAP_Port,
		Address:       cfg.Mail.Address,
		Password:      cfg.Mail.Password,
		SentFolder:    cfg.Mail.Sent_Folder,
		SentRetention: cfg.sentRetention,
	}, lg)

	disp := dispatch.New(lg)
	disp.Wx = providers.NewWxClient(``, cfg.Global.Wx_API_Key, lg)
	disp.Geo = geocoder
	disp.Aviation = providers.NewAviationClient(``, lg)
	disp.Cwop = providers.NewCwopClient(``, lg)
	disp.Osm = providers.NewOsmClient(geocoder, lg)
	disp.Position = position
	disp.Pager = providers.NewDapnetClient(``, cfg.DAPNET.Callsign, cfg.DAPNET.Password, cfg.DAPNET.Transmitter_Group, lg)
	disp.Mail = mailer
	disp.Sonde = providers.NewSondeClient(position)
	disp.Passes = providers.PassPredictor{MinElevation: cfg.Global.Min_Elevation}
	disp.Ref = store
	disp.Cfg = dispatch.Config{OwnLat: cfg.lat, OwnLon: cfg.lon}

	scheduler := sched.New(sess, lg)
	acks := ingress.NewAckTracker()
	dedup := decay.New(cfg.dedupTTL, cfg.Global.Dedup_Max_Entries)

	//inbound requests queue here and dispatch strictly FIFO; further
	//frames keep flowing through admission while one request is being
	//answered
	requests := make(chan ingress.Request, 64)

	handler := ingress.NewHandler(cfg.Global.Addressee_Filter, dedup, acks, lg)
	handler.OnAck = func(dest, id string) {
		scheduler.Enqueue(sched.Group{
			Cat:      aprs.CatAck,
			Payloads: []string{aprs.Ack(dest, id)},
		})
	}
	handler.OnRequest = func(req ingress.Request) {
		select {
		case requests <- req:
		default:
			lg.Warn("request queue saturated, dropping", log.KV("source", req.Frame.Source))
		}
	}

	//scheduled producers
	scheduler.AddJob(sched.BeaconJob(scheduler, aprs.Position{
		Lat:        cfg.lat,
		Lon:        cfg.lon,
		SymbolTab:  cfg.symbolTable(),
		SymbolCode: cfg.symbolCode(),
		AltFeet:    cfg.Global.Altitude_Feet,
		Comment:    cfg.Global.Alias + ` ` + appVersion,
	}, cfg.beaconInterval))
	if lines := cfg.bulletinLines(); len(lines) > 0 {
		scheduler.AddJob(sched.BulletinJob(scheduler, lines, cfg.bulletinInterval))
	}
	scheduler.AddJob(sched.RefreshJob(scheduler, lg, `satellites`, cfg.Global.TLE_URL,
		store.Path(refdata.TLEFile), refdata.SatelliteInterval, store.ReloadSatellites))
	scheduler.AddJob(sched.RefreshJob(scheduler, lg, `repeaters`, cfg.Global.Repeater_URL,
		store.Path(refdata.RepeaterFile), refdata.RepeaterInterval, store.ReloadRepeaters))
	scheduler.AddJob(sched.RefreshJob(scheduler, lg, `airports`, cfg.Global.Airport_URL,
		store.Path(refdata.AirportFile), refdata.AirportInterval, store.ReloadAirports))
	if mailer.Enabled() {
		scheduler.AddJob(sched.HousekeepingJob(lg, `mail-prune`, mailPruneInterval, mailer.PruneSent))
	}

	lg.Info("mpad starting", log.KV("callsign", cfg.Global.Callsign), log.KV("server", cfg.Global.Server))
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		scheduler.Run(ctx)
		return nil
	})
	wg.Go(func() error {
		handler.Run(ctx, sess.Frames())
		return nil
	})
	wg.Go(func() error {
		dispatchWorker(ctx, cfg, disp, store, acks, scheduler, requests)
		return nil
	})
	wg.Go(func() error {
		return sess.Run(ctx)
	})
	return wg.Wait()
}

// dispatchWorker answers admitted requests one at a time in arrival
// order. On shutdown the queue drains silently.
func dispatchWorker(ctx context.Context, cfg *cfgType, disp *dispatch.Dispatcher, store *refdata.Store, acks *ingress.AckTracker, scheduler *sched.Scheduler, requests <-chan ingress.Request) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-requests:
			answer(ctx, cfg, disp, store, acks, scheduler, req)
		}
	}
}

func answer(ctx context.Context, cfg *cfgType, disp *dispatch.Dispatcher, store *refdata.Store, acks *ingress.AckTracker, scheduler *sched.Scheduler, req ingress.Request) {
	f := req.Frame
	cmd := cmdparse.Parse(f.Body, cmdparse.Options{
		DefaultUnicode: cfg.Global.Force_Unicode,
		OsmCategories:  cfg.Global.Osm_Category,
		IsSatellite:    store.Satellites().Has,
	})
	cmd.MsgID = f.MsgID
	resp := disp.Handle(ctx, f.Source, cmd)
	if resp.Empty() {
		return
	}
	frags := response.Fragment(resp, cmd.ForceUnicode)
	//outbound ids only when the inbound was numbered; answers to
	//reply-ack capable peers carry the in-band trailer
	payloads := make([]string, 0, len(frags))
	for _, frag := range frags {
		var msgid, ackid string
		if f.MsgID != `` {
			msgid = acks.NextMsgID()
			acks.Register(msgid, f.Source)
			if acks.UsesReplyAck(f.Source) {
				ackid = f.MsgID
			}
		}
		payloads = append(payloads, aprs.Message(f.Source, frag, msgid, ackid))
	}
	scheduler.Enqueue(sched.Group{Cat: aprs.CatMessage, Payloads: payloads})
}
