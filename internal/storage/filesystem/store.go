package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldreport/backend/internal/storage"
)

// Store 文件系统二进制存储实现。
//
// 所有附件以生成的唯一文件名平铺存放在 {basePath}/files/ 下，
// 生成名中带时间戳与随机后缀，避免并发上传时的命名冲突。
type Store struct {
	basePath string // 附件存储根目录
}

// SavedFile 一次保存操作的结果。
type SavedFile struct {
	StoredName  string // 文件存储中的唯一名称
	StoragePath string // 相对 basePath 的存储路径
	Size        int64  // 写入字节数
}

// NewStore 创建文件系统存储实例。
func NewStore(basePath string) (*Store, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path must not be empty")
	}

	filesDir := filepath.Join(basePath, "files")
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: basePath}, nil
}

// Save 将读取器内容写入文件存储，返回生成的存储名。
//
// 先写入临时文件再原子重命名，保证存储中不会出现写了一半的文件。
func (s *Store) Save(originalName string, r io.Reader) (*SavedFile, error) {
	storedName := generateStoredName(originalName)
	finalPath := filepath.Join(s.basePath, "files", storedName)

	tmp, err := os.CreateTemp(filepath.Join(s.basePath, "files"), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to finalize file: %w", err)
	}

	relPath, err := filepath.Rel(s.basePath, finalPath)
	if err != nil {
		relPath = finalPath
	}

	return &SavedFile{
		StoredName:  storedName,
		StoragePath: relPath,
		Size:        size,
	}, nil
}

// Open 按存储名打开文件内容，不存在时返回 os.ErrNotExist。
func (s *Store) Open(storedName string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, "files", filepath.Base(storedName)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete 删除指定文件，文件不存在时视为成功。
func (s *Store) Delete(storedName string) error {
	err := os.Remove(filepath.Join(s.basePath, "files", filepath.Base(storedName)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists 检查指定文件是否存在。
func (s *Store) Exists(storedName string) bool {
	_, err := os.Stat(filepath.Join(s.basePath, "files", filepath.Base(storedName)))
	return err == nil
}

// Health 检查存储根目录是否可用。
func (s *Store) Health() error {
	info, err := os.Stat(filepath.Join(s.basePath, "files"))
	if err != nil {
		return fmt.Errorf("file store unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("file store path is not a directory")
	}
	return nil
}

// List 返回文件存储中的全部条目。
func (s *Store) List() ([]storage.FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, "files"))
	if err != nil {
		return nil, fmt.Errorf("failed to read file store: %w", err)
	}

	infos := make([]storage.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// 跳过未完成的临时上传
		if strings.HasPrefix(entry.Name(), ".upload-") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, storage.FileInfo{
			StoredName: entry.Name(),
			Size:       fi.Size(),
			ModTime:    fi.ModTime(),
		})
	}

	return infos, nil
}

// Sweep 删除早于宽限期且不再被引用的文件，返回删除数量。
//
// inUse 回调由调用方提供，用于判断存储名是否仍被某条记录引用。
func (s *Store) Sweep(grace time.Duration, inUse func(storedName string) bool) (int, error) {
	infos, err := s.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-grace)
	count := 0
	for _, info := range infos {
		if info.ModTime.After(cutoff) {
			continue
		}
		if inUse(info.StoredName) {
			continue
		}
		if err := s.Delete(info.StoredName); err == nil {
			count++
		}
	}

	return count, nil
}

// generateStoredName 生成系统内唯一的存储文件名。
// 格式: {清理后的原名}_{unix毫秒}_{uuid前8位}{扩展名}
func generateStoredName(originalName string) string {
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(filepath.Base(originalName), ext)
	base = sanitizeFilename(base)
	if base == "" {
		base = "file"
	}

	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%d_%s%s", base, time.Now().UnixMilli(), suffix, ext)
}

// sanitizeFilename 清理文件名中的路径分隔符与控制字符。
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 32:
			continue
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	out := b.String()
	if len(out) > 100 {
		out = out[:100]
	}
	return out
}
