package product

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/utils"
)

// InputKind is the shape of the input of a run
type InputKind int

const (
	// SafeDir is an unzipped .SAFE product
	SafeDir InputKind = iota
	// Archive is a zipped product
	Archive
	// Folder contains the metadata files and the band files without the SAFE structure
	Folder
	// TileXML is the path of the tile metadata (MTD_TL.xml) of a product
	TileXML
)

func (k InputKind) String() string {
	switch k {
	case SafeDir:
		return "safe"
	case Archive:
		return "archive"
	case Folder:
		return "folder"
	case TileXML:
		return "tile-xml"
	}
	return "unknown"
}

const (
	tileMetadata   = "MTD_TL.xml"
	productPattern = "MTD_MSIL*.xml"
	granuleDir     = "GRANULE"
	imgDataDir     = "IMG_DATA"
	// OutputDir is the folder created next to the tile metadata when no output location is given
	OutputDir = "ANG_DATA"
)

// DetectInput returns the kind of input at path.
// It returns a MissingInputError if path does not exist.
func DetectInput(path string) (InputKind, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, angles.NewMissingInputError(path, "%v", err)
	}
	name := strings.ToLower(filepath.Base(filepath.Clean(path)))
	if fi.IsDir() {
		if strings.HasSuffix(name, ".safe") || utils.IsDir(filepath.Join(path, granuleDir)) {
			return SafeDir, nil
		}
		return Folder, nil
	}
	switch {
	case strings.HasSuffix(name, ".zip"):
		return Archive, nil
	case strings.HasSuffix(name, ".xml"):
		return TileXML, nil
	}
	return 0, angles.NewConfigurationError("unsupported input %s: expecting a .SAFE folder, a .zip archive, a folder or a MTD_TL.xml file", path)
}

// Layout gives the paths of the files of a product
type Layout struct {
	Kind InputKind
	// Root of the product (SAFE folder, folder or folder of the tile metadata)
	Root string
	// ProductXML is the product metadata (MTD_MSIL*.xml). Empty if the product has none
	ProductXML string
	// TileXML is the tile metadata (MTD_TL.xml)
	TileXML string
	// ImgDir is the folder where the reference band is searched
	ImgDir string
	// DefaultOutput is the output folder when none is given
	DefaultOutput string
}

// Locate finds the metadata files and the image folder of the product at root.
// kind must be SafeDir, Folder or TileXML (an Archive must be extracted first).
// It returns a MissingInputError if the tile metadata cannot be found.
func Locate(kind InputKind, root string) (Layout, error) {
	l := Layout{Kind: kind, Root: root}
	switch kind {
	case SafeDir:
		l.ProductXML = globFirst(filepath.Join(root, productPattern))
		l.TileXML = globFirst(filepath.Join(root, granuleDir, "*", tileMetadata))
		if l.TileXML == "" {
			return Layout{}, angles.NewMissingInputError(root, "missing %s/*/%s", granuleDir, tileMetadata)
		}
		granule := filepath.Dir(l.TileXML)
		l.ImgDir = filepath.Join(granule, imgDataDir)
		if !utils.IsDir(l.ImgDir) {
			l.ImgDir = granule
		}
		l.DefaultOutput = filepath.Join(granule, OutputDir)

	case Folder:
		l.ProductXML = globFirst(filepath.Join(root, productPattern))
		l.TileXML = globFirst(filepath.Join(root, tileMetadata))
		if l.TileXML == "" {
			l.TileXML = globFirst(filepath.Join(root, granuleDir, "*", tileMetadata))
		}
		if l.TileXML == "" {
			return Layout{}, angles.NewMissingInputError(root, "missing %s", tileMetadata)
		}
		l.ImgDir = root
		l.DefaultOutput = filepath.Join(root, OutputDir)

	case TileXML:
		if fi, err := os.Stat(root); err != nil || fi.IsDir() {
			return Layout{}, angles.NewMissingInputError(root, "missing tile metadata")
		}
		l.TileXML = root
		l.Root = filepath.Dir(root)
		// SAFE structure: <product>.SAFE/GRANULE/<granule>/MTD_TL.xml
		l.ProductXML = globFirst(filepath.Join(l.Root, "..", "..", productPattern))
		if l.ProductXML == "" {
			l.ProductXML = globFirst(filepath.Join(l.Root, productPattern))
		}
		l.ImgDir = l.Root
		l.DefaultOutput = filepath.Join(l.Root, OutputDir)

	default:
		return Layout{}, angles.NewConfigurationError("cannot locate the files of a %s input", kind)
	}
	return l, nil
}
