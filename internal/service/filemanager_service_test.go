package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumashot/internal/domain"
)

func newFileManagerFixture() (*FileManagerService, *fakeStorage) {
	storage := newFakeStorage()
	return NewFileManagerService(storage, nil), storage
}

func TestValidateFolderName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "photos", true},
		{"with dash and underscore", "my-folder_2", true},
		{"single char", "a", true},
		{"max length", strings.Repeat("a", 50), true},
		{"too long", strings.Repeat("a", 51), false},
		{"empty", "", false},
		{"space", "My Folder", false},
		{"leading dot", ".hidden", false},
		{"trailing dot", "folder.", false},
		{"slash", "a/b", false},
		{"backslash", `a\b`, false},
		{"cyrillic", "папка", false},
		{"interior dot", "v1.2", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFolderName(tc.input)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, domain.ErrInvalidName))
			}
		})
	}
}

func TestValidateFileName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "photo.webp", true},
		{"dotted version", "archive.v1.2.jpeg", true},
		// Запрет крайних точек действует только для папок
		{"leading dot", ".hidden", true},
		{"max length", strings.Repeat("a", 100), true},
		{"too long", strings.Repeat("a", 101), false},
		{"empty", "", false},
		{"space", "my photo.webp", false},
		{"slash", "a/b.webp", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFileName(tc.input)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, domain.ErrInvalidName))
			}
		})
	}
}

func TestList_OrderingContract(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")

	storage.put(root+"/zebra.png", 10)
	storage.put(root+"/banana.jpg", 10)
	storage.put(root+"/Apple/.keep", 0)

	assets, err := svc.List(context.Background(), "u1", root)
	require.NoError(t, err)
	require.Len(t, assets, 3)

	// Папки раньше файлов, внутри групп — лексикографически
	assert.Equal(t, "Apple", assets[0].Name)
	assert.Equal(t, domain.KindFolder, assets[0].Kind)
	assert.Equal(t, "banana.jpg", assets[1].Name)
	assert.Equal(t, "zebra.png", assets[2].Name)
}

func TestList_EmptySandboxIsNotAnError(t *testing.T) {
	svc, _ := newFileManagerFixture()

	assets, err := svc.List(context.Background(), "u1", domain.SandboxRoot("u1"))
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestList_MarkersAreHidden(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")

	storage.put(root+"/.keep", 0)
	storage.put(root+"/a.webp", 5)

	assets, err := svc.List(context.Background(), "u1", root)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "a.webp", assets[0].Name)
}

func TestSandboxViolation_NoBackendCalls(t *testing.T) {
	svc, storage := newFileManagerFixture()

	outside := []string{
		"users/u2/public_images",
		"users/u1/private",
		"users/u1/public_images_extra",
		"system/config",
		"",
	}

	for _, path := range outside {
		_, err := svc.List(context.Background(), "u1", path)
		assert.True(t, errors.Is(err, domain.ErrSecurityViolation), "path %q", path)

		err = svc.Delete(context.Background(), "u1", path, true)
		assert.True(t, errors.Is(err, domain.ErrSecurityViolation), "path %q", path)
	}

	_, err := svc.CreateFolder(context.Background(), "u1", "users/u2/public_images", "intruder")
	assert.True(t, errors.Is(err, domain.ErrSecurityViolation))

	err = svc.Move(context.Background(), "u1", domain.SandboxRoot("u1")+"/a.webp", "users/u2/public_images")
	assert.True(t, errors.Is(err, domain.ErrSecurityViolation))

	// Ни одна отклонённая операция не дошла до хранилища
	assert.Equal(t, 0, storage.callCount())
}

func TestCreateFolder(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")

	folder, err := svc.CreateFolder(context.Background(), "u1", root, "gallery")
	require.NoError(t, err)

	assert.Equal(t, root+"/gallery", folder.Path)
	assert.Equal(t, domain.KindFolder, folder.Kind)

	_, ok := storage.objects[root+"/gallery/.keep"]
	assert.True(t, ok, "folder marker must be written")
}

func TestCreateFolder_InvalidNameBeforeBackend(t *testing.T) {
	svc, storage := newFileManagerFixture()

	_, err := svc.CreateFolder(context.Background(), "u1", domain.SandboxRoot("u1"), "My Folder")
	assert.True(t, errors.Is(err, domain.ErrInvalidName))
	assert.Equal(t, 0, storage.callCount())
}

func TestRename_File(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")
	storage.put(root+"/old.webp", 42)

	require.NoError(t, svc.Rename(context.Background(), "u1", root+"/old.webp", "new.webp"))

	_, oldExists := storage.objects[root+"/old.webp"]
	newObj, newExists := storage.objects[root+"/new.webp"]
	assert.False(t, oldExists)
	require.True(t, newExists)
	assert.Len(t, newObj.data, 42)
}

func TestRename_FolderMovesSubtree(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")
	storage.put(root+"/old/.keep", 0)
	storage.put(root+"/old/a.webp", 10)
	storage.put(root+"/old/deep/b.webp", 20)

	require.NoError(t, svc.Rename(context.Background(), "u1", root+"/old", "renamed"))

	_, ok := storage.objects[root+"/renamed/a.webp"]
	assert.True(t, ok)
	_, ok = storage.objects[root+"/renamed/deep/b.webp"]
	assert.True(t, ok)
	for key := range storage.objects {
		assert.False(t, strings.HasPrefix(key, root+"/old/"), "stale key %s", key)
	}
}

func TestRename_FolderNameRulesApply(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")
	storage.put(root+"/photos/.keep", 0)

	// Для папки имя с точкой внутри недопустимо, хотя для файла прошло бы
	err := svc.Rename(context.Background(), "u1", root+"/photos", "v1.2")
	assert.True(t, errors.Is(err, domain.ErrInvalidName))
}

func TestRename_NotFound(t *testing.T) {
	svc, _ := newFileManagerFixture()

	err := svc.Rename(context.Background(), "u1", domain.SandboxRoot("u1")+"/ghost.webp", "new.webp")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMove_FileIntoFolder(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")
	storage.put(root+"/a.webp", 10)
	storage.put(root+"/gallery/.keep", 0)

	require.NoError(t, svc.Move(context.Background(), "u1", root+"/a.webp", root+"/gallery"))

	_, ok := storage.objects[root+"/gallery/a.webp"]
	assert.True(t, ok)
	_, ok = storage.objects[root+"/a.webp"]
	assert.False(t, ok)
}

func TestMove_IntoOwnSubtreeRejected(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")
	storage.put(root+"/parent/child/.keep", 0)

	err := svc.Move(context.Background(), "u1", root+"/parent", root+"/parent/child")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	err = svc.Move(context.Background(), "u1", root+"/parent", root+"/parent")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestDelete_File(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")
	storage.put(root+"/a.webp", 10)

	require.NoError(t, svc.Delete(context.Background(), "u1", root+"/a.webp", false))
	assert.Empty(t, storage.objects)
}

func TestDelete_NonEmptyFolderRequiresRecursive(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")
	storage.put(root+"/gallery/.keep", 0)
	storage.put(root+"/gallery/a.webp", 10)

	err := svc.Delete(context.Background(), "u1", root+"/gallery", false)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Len(t, storage.objects, 2, "nothing may be deleted on refusal")

	require.NoError(t, svc.Delete(context.Background(), "u1", root+"/gallery", true))
	assert.Empty(t, storage.objects)
}

func TestDelete_EmptyFolderWithoutRecursive(t *testing.T) {
	svc, storage := newFileManagerFixture()
	root := domain.SandboxRoot("u1")
	storage.put(root+"/empty/.keep", 0)

	require.NoError(t, svc.Delete(context.Background(), "u1", root+"/empty", false))
	assert.Empty(t, storage.objects)
}
