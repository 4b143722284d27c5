// Package storage writes downloaded images into an output directory.
//
// Files are written to a hidden temporary file first and renamed into
// place, so a crashed or cancelled download never leaves a truncated image
// under its final name. The Manager scans the directory on creation and
// hands out collision-free names through Reserve:
//
//	manager, err := storage.NewManager("downloads/instagram")
//	if err != nil {
//	    return err
//	}
//	name := manager.Reserve("instagram_image_20250816120000_1.jpg")
//	path, size, err := manager.Save(body, name)
package storage
