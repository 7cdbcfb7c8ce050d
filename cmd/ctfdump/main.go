// ctfdump is a CLI tool for inspecting Compact ANSI-C Type Format images,
// built on the query engine in package ctf.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyctf/ctf/pkg/ctf"
	"github.com/tinyctf/ctf/pkg/ctfimg"
)

var (
	elfSection string
	parentPath string
	typeID     int64
	memberName string
)

func openPath(path string) (*ctfimg.Opened, error) {
	var parent *ctf.Container
	if parentPath != "" {
		po, err := ctfimg.Open(parentPath)
		if err != nil {
			return nil, fmt.Errorf("opening parent %s: %w", parentPath, err)
		}
		parent = po.Container
	}

	if elfSection != "" {
		c, err := ctfimg.OpenELFSection(path, elfSection, parent)
		if err != nil {
			return nil, err
		}
		return &ctfimg.Opened{Container: c}, nil
	}

	if parent != nil {
		return ctfimg.OpenChild(path, parent)
	}
	return ctfimg.Open(path)
}

func main() {
	root := &cobra.Command{
		Use:   "ctfdump",
		Short: "Inspect a Compact ANSI-C Type Format image",
		Long:  "ctfdump opens a CTF container and queries its type graph.",
	}
	root.PersistentFlags().StringVar(&elfSection, "elf-section", "", "extract the image from this ELF section instead of treating the file as a standalone image")
	root.PersistentFlags().StringVar(&parentPath, "parent", "", "path to the parent CTF image, if this container is a child")

	infoCmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Print container summary: version, max type id, parent linkage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := openPath(args[0])
			if err != nil {
				return err
			}
			defer o.Close()
			c := o.Container
			fmt.Printf("version:   v%d\n", c.Version())
			fmt.Printf("max type:  %d\n", c.MaxType())
			fmt.Printf("is child:  %v\n", parentPath != "")
			return nil
		},
	}

	typesCmd := &cobra.Command{
		Use:   "types <file>",
		Short: "List every root-visible type with its kind, name, and size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := openPath(args[0])
			if err != nil {
				return err
			}
			defer o.Close()
			c := o.Container
			_, err = c.TypeIter(func(id uint32, ctx any) int {
				kind, _ := c.TypeKind(int64(id))
				name, _ := c.TypeNameString(int64(id))
				size, _ := c.Size(int64(id))
				fmt.Printf("%6d  %-10s %-40s size=%d\n", id, kind, name, size)
				return 0
			}, nil)
			return err
		},
	}

	nameCmd := &cobra.Command{
		Use:   "name <file>",
		Short: "Print the C-syntactic declaration for --type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := openPath(args[0])
			if err != nil {
				return err
			}
			defer o.Close()
			name, err := o.Container.TypeNameString(typeID)
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		},
	}
	nameCmd.Flags().Int64Var(&typeID, "type", 0, "type id to name")

	memberCmd := &cobra.Command{
		Use:   "member <file>",
		Short: "Look up one member of a struct/union --type by --name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := openPath(args[0])
			if err != nil {
				return err
			}
			defer o.Close()
			if memberName == "" {
				_, err := o.Container.MemberIter(typeID, func(name string, mt uint32, bitOff uint64, ctx any) int {
					fmt.Printf("%-30s type=%d bit-offset=%d\n", name, mt, bitOff)
					return 0
				}, nil)
				return err
			}
			mt, off, err := o.Container.MemberInfo(typeID, memberName)
			if err != nil {
				return err
			}
			fmt.Printf("%s: type=%d bit-offset=%d\n", memberName, mt, off)
			return nil
		},
	}
	memberCmd.Flags().Int64Var(&typeID, "type", 0, "containing struct/union type id")
	memberCmd.Flags().StringVar(&memberName, "name", "", "member name to look up")

	root.AddCommand(infoCmd, typesCmd, nameCmd, memberCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ctfdump: %v\n", err)
		os.Exit(1)
	}
}
