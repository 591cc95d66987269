// storefront-cli drives the storefront client packages from a terminal: it
// edits the persisted cart, signs in and runs a checkout end to end.
//
// Commands:
//
//	storefront-cli cart show|add|inc|dec|remove|clear [-id ID] [-name NAME] [-price P]
//	storefront-cli checkout -api URL [-email E -password P] [-order ID] -stripe-key sk_test_... [-payment-method pm_card_visa]
//	storefront-cli status -api URL -id pi_...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/client/cartstore"
	"github.com/rpr91/Malandros/client/checkout"
	"github.com/rpr91/Malandros/client/httpclient"
	"github.com/rpr91/Malandros/client/tokenstore"
	"github.com/rpr91/Malandros/common/logger"
)

// Global flags, parsed per command.
var (
	cartPath string
	redisURL string
	verbose  bool
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "cart":
		err = runCart(args)
	case "checkout":
		err = runCheckout(args)
	case "status":
		err = runStatus(args)
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `storefront-cli - storefront checkout driver

Usage:
  storefront-cli <command> [options]

Commands:
  cart      Show or edit the persisted cart (show, add, inc, dec, remove, clear)
  checkout  Create a payment intent for the cart and confirm it
  status    Show the composite payment status of an intent

Run 'storefront-cli <command> -h' for command-specific options.
`)
}

func defaultCartPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "storefront", cartstore.StorageKey+".json")
}

func addCommonFlags(fs *flag.FlagSet) {
	fs.StringVar(&cartPath, "cart", defaultCartPath(), "cart snapshot file")
	fs.StringVar(&redisURL, "redis", "", "persist the cart in redis instead of a file")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	l, err := logger.New("development", nil)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func openCart(ctx context.Context, log *zap.Logger) (*cartstore.Store, func(), error) {
	var persister cartstore.Persister
	closeFn := func() {}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		closeFn = func() { _ = client.Close() }
		persister = cartstore.NewRedisPersister(client, "storefront-cli")
	} else {
		persister = cartstore.NewFilePersister(cartPath)
	}

	store := cartstore.New(persister, log)
	if err := store.Restore(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

func runCart(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("cart needs an action: show, add, inc, dec, remove, clear")
	}
	action := args[0]

	fs := flag.NewFlagSet("cart "+action, flag.ExitOnError)
	addCommonFlags(fs)
	id := fs.String("id", "", "menu item id")
	name := fs.String("name", "", "item name (add)")
	price := fs.Float64("price", 0, "unit price in major units (add)")
	_ = fs.Parse(args[1:])

	ctx := context.Background()
	store, closeFn, err := openCart(ctx, newLogger())
	if err != nil {
		return err
	}
	defer closeFn()

	needID := action != "show" && action != "clear"
	if needID && *id == "" {
		return fmt.Errorf("-id is required for %s", action)
	}

	switch action {
	case "show":
	case "add":
		err = store.AddItem(ctx, cartstore.Item{ItemID: *id, Name: *name, Price: *price})
	case "inc":
		err = store.IncreaseQuantity(ctx, *id)
	case "dec":
		err = store.DecreaseQuantity(ctx, *id)
	case "remove":
		err = store.RemoveItem(ctx, *id)
	case "clear":
		err = store.Clear(ctx)
	default:
		return fmt.Errorf("unknown cart action %q", action)
	}
	if err != nil {
		return err
	}

	printCart(store)
	return nil
}

func printCart(store *cartstore.Store) {
	items := store.Items()
	if len(items) == 0 {
		fmt.Println("Cart is empty")
		return
	}
	for _, it := range items {
		fmt.Printf("%-12s %-24s %3d x %6.2f\n", it.ItemID, it.Name, it.Quantity, it.Price)
	}
	fmt.Printf("%-12s %-24s %12.2f\n", "", "Total", store.Total())
}

func newAPIClient(apiURL string, log *zap.Logger) (*httpclient.Client, error) {
	return httpclient.New(apiURL, tokenstore.New(), httpclient.WithLogger(log))
}

type loginResponse struct {
	AccessToken       string    `json:"accessToken"`
	AccessTokenExpiry time.Time `json:"accessTokenExpiry"`
}

func login(ctx context.Context, c *httpclient.Client, email, password string) error {
	var out loginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.DoJSON(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.Tokens().Set(out.AccessToken, out.AccessTokenExpiry)
	return nil
}

func runCheckout(args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	addCommonFlags(fs)
	apiURL := fs.String("api", "http://localhost:8080", "storefront base URL")
	email := fs.String("email", "", "sign in before checkout")
	password := fs.String("password", "", "password for -email")
	orderID := fs.String("order", "", "backend order id to pay for")
	currency := fs.String("currency", "usd", "currency code")
	stripeKey := fs.String("stripe-key", os.Getenv("STRIPE_SECRET_KEY"), "Stripe secret key used to confirm")
	paymentMethod := fs.String("payment-method", "pm_card_visa", "Stripe payment method id")
	timeout := fs.Duration("timeout", time.Minute, "overall timeout")
	_ = fs.Parse(args)

	if *stripeKey == "" {
		return fmt.Errorf("-stripe-key (or STRIPE_SECRET_KEY) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log := newLogger()
	defer log.Sync()

	store, closeFn, err := openCart(ctx, log)
	if err != nil {
		return err
	}
	defer closeFn()

	client, err := newAPIClient(*apiURL, log)
	if err != nil {
		return err
	}
	if *email != "" {
		if err := login(ctx, client, *email, *password); err != nil {
			return err
		}
	}

	metadata := map[string]string{}
	if *orderID != "" {
		metadata["orderId"] = *orderID
	}

	returnURL := *apiURL + "/payment/success"
	flow := checkout.NewFlow(store, checkout.NewAPIClient(client), checkout.NewStripeConfirmer(*stripeKey, *paymentMethod, returnURL), log)

	printCart(store)
	session, err := flow.Start(ctx, *currency, metadata)
	if err != nil {
		return err
	}
	fmt.Printf("Payment intent %s created for %.2f %s\n", session.PaymentIntentID, session.Amount, session.Currency)

	res, err := flow.Confirm(ctx, session)
	if err != nil {
		return err
	}
	if res.State == checkout.StateFailed {
		fmt.Printf("Payment failed: %s (%s)\n", res.Message, res.ErrorCode)
	} else {
		fmt.Println("Payment succeeded")
	}
	fmt.Printf("Next: %s\n", res.Navigation)
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addCommonFlags(fs)
	apiURL := fs.String("api", "http://localhost:8080", "storefront base URL")
	id := fs.String("id", "", "payment intent id")
	_ = fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	client, err := newAPIClient(*apiURL, newLogger())
	if err != nil {
		return err
	}
	status, err := checkout.NewAPIClient(client).PaymentStatus(context.Background(), *id)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
