package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"peopledesk.org/internal/asset"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/expense"
	"peopledesk.org/internal/httpapi"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/obs"
	"peopledesk.org/internal/onboard"
	"peopledesk.org/internal/org"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/reminders"
	"peopledesk.org/internal/store/pg"
	"peopledesk.org/internal/task"
	"peopledesk.org/internal/workplace"
)

var version = "0.3.1"

func main() {
	obs.Init()

	dsn := os.Getenv("PD_PG_DSN")
	if dsn == "" {
		log.Fatal("PD_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	resolverOpts := []auth.ResolverOption{}
	if email := os.Getenv("PD_SUPERADMIN_EMAIL"); email != "" {
		resolverOpts = append(resolverOpts, auth.WithSuperAdmin(email, os.Getenv("PD_SUPERADMIN_PASSWORD_HASH")))
	}
	resolver, err := auth.NewResolver(store.Users(), resolverOpts...)
	if err != nil {
		log.Fatalf("auth resolver: %v", err)
	}

	reminderOpts := []reminders.Option{}
	if days := os.Getenv("PD_RENEWAL_HORIZON_DAYS"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			log.Fatalf("PD_RENEWAL_HORIZON_DAYS: %q is not a positive day count", days)
		}
		reminderOpts = append(reminderOpts, reminders.WithRenewalHorizon(time.Duration(n)*24*time.Hour))
	}

	orgSvc := org.NewService(store.Orgs())
	deps := httpapi.Deps{
		Resolver:   resolver,
		Orgs:       orgSvc,
		People:     people.NewService(store.Users()),
		Leaves:     leave.NewService(store.Leaves(), store.Users(), orgSvc),
		Expenses:   expense.NewService(store.Expenses()),
		Tasks:      task.NewService(store.Tasks()),
		Onboarding: onboard.NewService(store.Onboarding()),
		Assets:     asset.NewService(store.Assets()),
		Workplace:  workplace.NewService(store.Workplace()),
		Reminders:  reminders.NewService(store.Reminders(), reminderOpts...),
		Notify:     notify.NewDispatcher(),
	}

	probe := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.DB().PingContext(ctx) == nil
	}

	api := httpapi.New(deps, probe, version)
	handler := httpapi.RateLimit(api.Handler(), 50, 25)

	addr := os.Getenv("PD_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcAddr := os.Getenv("PD_GRPC_ADDR")
	if grpcAddr == "" {
		grpcAddr = ":9090"
	}
	grpcSrv := httpapi.NewGRPCServer(probe)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	log.Printf("starting peopledesk-api %s on %s (grpc %s)", version, srv.Addr, grpcAddr)

	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	log.Println("stopped")
}
