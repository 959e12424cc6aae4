package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/productos/internal/domain/product"
	"github.com/xenking/productos/internal/screen"
)

func newLoginCmd(c *cli) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if username == "" {
				if username, err = c.prompt("Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = c.prompt("Password: "); err != nil {
					return err
				}
			}

			login := screen.NewLogin(c.client.Session)
			if !login.Submit(cmd.Context(), username, password) {
				return errors.New(login.Error())
			}
			fmt.Fprintln(c.out, "Logged in.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.client.Catalog.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Logged out.")
			return nil
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the stored session is still accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.client.Session.Validate(cmd.Context()) {
				return errors.New("session is not valid")
			}
			fmt.Fprintf(c.out, "Logged in to %s.\n", c.client.API.BaseURL())
			return nil
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List products",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := c.products()
			if err := s.Load(cmd.Context()); err != nil {
				return errors.New(s.ListError())
			}
			if notice := s.Notice(); notice != "" {
				fmt.Fprintln(c.out, notice)
				return nil
			}
			return renderProducts(c, s.Products())
		},
	}
}

func newCategoriesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories of the current products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := c.products()
			if err := s.Load(cmd.Context()); err != nil {
				return errors.New(s.ListError())
			}
			for _, name := range s.Categories() {
				fmt.Fprintln(c.out, name)
			}
			return nil
		},
	}
}

type productFlags struct {
	name, price, category string
}

func (f *productFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "product name")
	cmd.Flags().StringVar(&f.price, "price", "", "product price, a positive decimal")
	cmd.Flags().StringVar(&f.category, "category", "", "product category")
}

// apply copies the flags that were set on cmd into the screen's form.
func (f *productFlags) apply(cmd *cobra.Command, s *screen.Products) {
	set := func(flag string, field product.Field, value string) {
		if cmd.Flags().Changed(flag) {
			s.SetField(field, value)
		}
	}
	set("name", product.FieldName, f.name)
	set("price", product.FieldPrice, f.price)
	set("category", product.FieldCategory, f.category)
}

func newAddCmd(c *cli) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := c.products()
			f.apply(cmd, s)
			if !s.Submit(cmd.Context()) {
				return errors.New(s.FormError())
			}
			fmt.Fprintln(c.out, "Product created.")
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newEditCmd(c *cli) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Update a product; unset fields keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s := c.products()
			if err := s.Load(cmd.Context()); err != nil {
				return errors.New(s.ListError())
			}
			p, ok := findProduct(s.Products(), id)
			if !ok {
				return errors.Errorf("product %d not found", id)
			}

			s.Edit(p)
			if cmd.Flags().Changed("category") && !contains(s.Categories(), f.category) {
				return errors.Errorf("unknown category %q, choose one of: %s",
					f.category, strings.Join(s.Categories(), ", "))
			}
			f.apply(cmd, s)
			if !s.Submit(cmd.Context()) {
				return errors.New(s.FormError())
			}
			fmt.Fprintln(c.out, "Product updated.")
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a product",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var failure string
			confirm := screen.ConfirmFunc(func(msg string) bool {
				if yes {
					return true
				}
				answer, err := c.prompt(msg + " [y/N]: ")
				if err != nil {
					return false
				}
				answer = strings.ToLower(answer)
				return answer == "y" || answer == "yes"
			})
			notify := screen.NotifyFunc(func(msg string) { failure = msg })

			s := screen.NewProducts(c.client.Catalog, confirm, notify)
			if !s.Delete(cmd.Context(), id) {
				if failure != "" {
					return errors.New(failure)
				}
				fmt.Fprintln(c.out, "Cancelled.")
				return nil
			}
			fmt.Fprintln(c.out, "Product deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (c *cli) products() *screen.Products {
	return screen.NewProducts(c.client.Catalog, nil, nil)
}

func renderProducts(c *cli, products []product.Product) error {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tCATEGORY")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Category)
	}
	return w.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid product id %q", s)
	}
	return id, nil
}

func findProduct(products []product.Product, id int64) (product.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return product.Product{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
