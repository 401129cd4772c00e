package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	natsadapter "github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/messaging/nats"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("listing id %q is not a number", s)
	}
	return id, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q is not a number", s)
	}
	return p, nil
}

func printListings(out io.Writer, listings []domain.Listing, favorited func(int64) bool) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tCATEGORY\tTYPE\tCOLOR\tSTATE\tFAV")
	for _, l := range listings {
		fav := ""
		if favorited != nil && favorited(l.ID) {
			fav = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Name, l.Price.StringFixed(2), l.Category, l.Type, l.Color, l.Sync, fav)
	}
	_ = tw.Flush()
}

// settle waits for the listing's mutations and reports how they ended.
func settle(ctx context.Context, e *engine, out io.Writer, id int64) error {
	if err := e.store.Flush(ctx); err != nil {
		fmt.Fprintln(out, "still pending; it will be confirmed on a later run or can be retried")
		return nil
	}
	l, err := e.store.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			fmt.Fprintln(out, "done")
			return nil
		}
		return err
	}
	if l.Sync == domain.SyncFailed {
		for _, m := range e.store.Mutations() {
			if m.ListingID == l.ID && m.Status == catalog.MutationFailed {
				return fmt.Errorf("listing %d: %s failed: %w", l.ID, m.Kind, m.Err)
			}
		}
		return fmt.Errorf("listing %d could not be saved", l.ID)
	}
	printListings(out, []domain.Listing{l}, e.favorites.IsFavorited)
	return nil
}

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login TOKEN",
		Short: "Sign in with a seller token",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, e *engine, out io.Writer, args []string) error {
			ident, err := e.login(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "signed in as %s\n", ident.SellerID)
			return nil
		}),
	}
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved seller token",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, e *engine, out io.Writer, _ []string) error {
			if err := e.logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "signed out")
			return nil
		}),
	}
}

type browseFlags struct {
	color string
	typ   string
	min   string
	max   string
	page  int
}

func (f *browseFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.color, "color", "", "only listings of this colour")
	cmd.Flags().StringVar(&f.typ, "type", "", "only listings of this type")
	cmd.Flags().StringVar(&f.min, "min", domain.DefaultPriceRange.Min.String(), "minimum price")
	cmd.Flags().StringVar(&f.max, "max", domain.DefaultPriceRange.Max.String(), "maximum price")
	cmd.Flags().IntVar(&f.page, "page", 1, "page to show")
}

func (f *browseFlags) criteria(category string) (domain.Criteria, error) {
	min, err := parsePrice(f.min)
	if err != nil {
		return domain.Criteria{}, err
	}
	max, err := parsePrice(f.max)
	if err != nil {
		return domain.Criteria{}, err
	}
	return domain.DefaultCriteria(category).WithColor(f.color).WithType(f.typ).WithPrice(min, max), nil
}

func printView(out io.Writer, v catalog.View, favorited func(int64) bool) {
	printListings(out, v.Visible, favorited)
	first, last := v.Range()
	if v.TotalCount == 0 {
		fmt.Fprintln(out, "no listings match")
	} else {
		fmt.Fprintf(out, "page %d of %d, showing %d-%d of %d\n", v.Page, v.TotalPages, first, last, v.TotalCount)
	}
	if v.Stale {
		fmt.Fprintln(out, "catalog unreachable, showing saved data")
	}
}

func (c *cli) browseCmd() *cobra.Command {
	var f browseFlags
	cmd := &cobra.Command{
		Use:   "browse [CATEGORY]",
		Short: "List a category page by page (default: All)",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, e *engine, out io.Writer, args []string) error {
			category := domain.AllCategories
			if len(args) == 1 {
				category = args[0]
			}
			crit, err := f.criteria(category)
			if err != nil {
				return err
			}
			bs := catalog.NewBrowseSession(e.store, e.bus, category, nil)
			defer bs.Close()

			bs.SetCriteria(crit)
			if _, err := bs.Load(ctx); err != nil && !errors.Is(err, domain.ErrFetch) {
				return err
			}
			printView(out, bs.SetPage(f.page), e.favorites.IsFavorited)
			return nil
		}),
	}
	f.register(cmd)
	return cmd
}

func (c *cli) favoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite ID",
		Short: "Add a listing to favorites, or remove it if already there",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, e *engine, out io.Writer, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var snap domain.DisplaySnapshot
			if !e.favorites.IsFavorited(id) {
				if _, err := e.store.LoadCategory(ctx, domain.AllCategories); err != nil && !errors.Is(err, domain.ErrFetch) {
					return err
				}
				l, err := e.store.Get(id)
				if err != nil {
					return err
				}
				snap = domain.SnapshotOf(l)
			}
			on, err := e.favorites.Toggle(ctx, id, snap)
			if err != nil {
				return err
			}
			if on {
				fmt.Fprintf(out, "listing %d added to favorites\n", id)
			} else {
				fmt.Fprintf(out, "listing %d removed from favorites\n", id)
			}
			return nil
		}),
	}
}

func (c *cli) favoritesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "Show favorited listings",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, e *engine, out io.Writer, _ []string) error {
			if _, err := e.store.LoadCategory(ctx, domain.AllCategories); err != nil && !errors.Is(err, domain.ErrFetch) {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tCATEGORY\tSTATUS")
			for _, fav := range e.favorites.Resolve(e.store) {
				name, price, category := fav.Entry.Name, fav.Entry.Price, fav.Entry.Category
				status := "no longer listed"
				if fav.Available {
					name, price, category = fav.Listing.Name, fav.Listing.Price, fav.Listing.Category
					status = "available"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", fav.Entry.ListingID, name, price.StringFixed(2), category, status)
			}
			return tw.Flush()
		}),
	}
}

type listingFlags struct {
	name        string
	price       string
	orders      int
	category    string
	typ         string
	color       string
	description string
	image       string
	imageFile   string
}

func (f *listingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "listing name")
	cmd.Flags().StringVar(&f.price, "price", "", "price")
	cmd.Flags().IntVar(&f.orders, "orders", 0, "number of orders")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
	cmd.Flags().StringVar(&f.typ, "type", "", "type within the category")
	cmd.Flags().StringVar(&f.color, "color", "", "colour from the palette")
	cmd.Flags().StringVar(&f.description, "description", "", "free text description")
	cmd.Flags().StringVar(&f.image, "image", "", "image URL")
	cmd.Flags().StringVar(&f.imageFile, "image-file", "", "local image to upload")
}

// imageRef uploads --image-file when given, otherwise returns --image.
func (f *listingFlags) imageRef(ctx context.Context, e *engine) (string, error) {
	if f.imageFile == "" {
		return f.image, nil
	}
	data, err := os.ReadFile(f.imageFile)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return e.store.UploadImage(ctx, filepath.Base(f.imageFile), data)
}

func (c *cli) createCmd() *cobra.Command {
	var f listingFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a listing",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, e *engine, out io.Writer, _ []string) error {
			price, err := parsePrice(f.price)
			if err != nil {
				return err
			}
			image, err := f.imageRef(ctx, e)
			if err != nil {
				return err
			}
			created, err := e.store.CreateListing(ctx, domain.Draft{
				Name:        f.name,
				Price:       price,
				OrdersCount: f.orders,
				ImageRef:    image,
				Category:    f.category,
				Type:        f.typ,
				Color:       f.color,
				Description: f.description,
			})
			if err != nil {
				return err
			}
			return settle(ctx, e, out, created.ID)
		}),
	}
	f.register(cmd)
	return cmd
}

func (f *listingFlags) patch(ctx context.Context, e *engine, changed func(string) bool) (domain.Patch, error) {
	var p domain.Patch
	if changed("name") {
		p.Name = &f.name
	}
	if changed("price") {
		price, err := parsePrice(f.price)
		if err != nil {
			return p, err
		}
		p.Price = &price
	}
	if changed("orders") {
		p.OrdersCount = &f.orders
	}
	if changed("category") {
		p.Category = &f.category
	}
	if changed("type") {
		p.Type = &f.typ
	}
	if changed("color") {
		p.Color = &f.color
	}
	if changed("description") {
		p.Description = &f.description
	}
	if changed("image") || changed("image-file") {
		image, err := f.imageRef(ctx, e)
		if err != nil {
			return p, err
		}
		p.ImageRef = &image
	}
	return p, nil
}

func (c *cli) editCmd() *cobra.Command {
	var f listingFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of one of your listings",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cc *cobra.Command, args []string) error {
		return c.run(func(ctx context.Context, e *engine, out io.Writer, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := e.store.LoadCategory(ctx, domain.AllCategories); err != nil && !errors.Is(err, domain.ErrFetch) {
				return err
			}
			patch, err := f.patch(ctx, e, cc.Flags().Changed)
			if err != nil {
				return err
			}
			updated, err := e.store.UpdateListing(ctx, id, patch)
			if err != nil {
				return err
			}
			return settle(ctx, e, out, updated.ID)
		})(cc, args)
	}
	f.register(cmd)
	return cmd
}

// idCmd builds a command that takes a single listing id.
func (c *cli) idCmd(use, short string, fn func(ctx context.Context, e *engine, out io.Writer, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, e *engine, out io.Writer, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return fn(ctx, e, out, id)
		}),
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return c.idCmd("delete", "Delete one of your listings", func(ctx context.Context, e *engine, out io.Writer, id int64) error {
		if _, err := e.store.LoadCategory(ctx, domain.AllCategories); err != nil && !errors.Is(err, domain.ErrFetch) {
			return err
		}
		if err := e.store.DeleteListing(ctx, id); err != nil {
			return err
		}
		return settle(ctx, e, out, id)
	})
}

func (c *cli) retryCmd() *cobra.Command {
	return c.idCmd("retry", "Resubmit the failed change of a listing", func(ctx context.Context, e *engine, out io.Writer, id int64) error {
		if err := e.store.Retry(ctx, id); err != nil {
			return err
		}
		return settle(ctx, e, out, id)
	})
}

func (c *cli) discardCmd() *cobra.Command {
	return c.idCmd("discard", "Drop the failed change of a listing and restore the confirmed state", func(ctx context.Context, e *engine, out io.Writer, id int64) error {
		if err := e.store.Discard(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "failed change of listing %d discarded\n", id)
		return nil
	})
}

func (c *cli) pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show changes that are not confirmed by the catalog",
		Args:  cobra.NoArgs,
		RunE: c.run(func(_ context.Context, e *engine, out io.Writer, _ []string) error {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LISTING\tKIND\tCATEGORY\tSTATUS\tISSUED\tERROR")
			for _, m := range e.store.Mutations() {
				errText := ""
				if m.Err != nil {
					errText = m.Err.Error()
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					m.ListingID, m.Kind, m.Category, m.Status, m.IssuedAt.Format("2006-01-02 15:04:05"), errText)
			}
			return tw.Flush()
		}),
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var f browseFlags
	cmd := &cobra.Command{
		Use:   "watch [CATEGORY]",
		Short: "Keep a category on screen and redraw it when listings change anywhere",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, e *engine, out io.Writer, args []string) error {
			category := domain.AllCategories
			if len(args) == 1 {
				category = args[0]
			}
			crit, err := f.criteria(category)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			nc, err := natsadapter.Connect(e.cfg.NATS.URL, e.log)
			if err != nil {
				return err
			}
			defer nc.Close()
			bridge := natsadapter.NewBridge(e.bus, e.store, e.cfg.Client.FetchTimeout, e.log)
			if err := bridge.Start(nc); err != nil {
				return err
			}
			defer func() { _ = bridge.Stop() }()

			redraw := func(v catalog.View) {
				fmt.Fprintln(out, strings.Repeat("-", 60))
				printView(out, v, e.favorites.IsFavorited)
			}
			bs := catalog.NewBrowseSession(e.store, e.bus, category, redraw)
			defer bs.Close()
			bs.SetCriteria(crit)
			if _, err := bs.Load(ctx); err != nil && !errors.Is(err, domain.ErrFetch) {
				return err
			}
			bs.SetPage(f.page)

			<-ctx.Done()
			return nil
		}),
	}
	f.register(cmd)
	return cmd
}

func (c *cli) taxonomyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Show categories, their types and the colour palette",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range domain.Categories() {
				types, _ := domain.TypesOf(name)
				fmt.Fprintf(out, "%s: %s\n", name, strings.Join(types, ", "))
			}
			fmt.Fprintf(out, "colours: %s\n", strings.Join(domain.Palette(), ", "))
			return nil
		},
	}
}
