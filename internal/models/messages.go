package models

import "fmt"

// User-facing messages. Raw error detail is only logged.
const (
	MsgUnauthorized      = "Unauthorized"
	MsgPromptOrImage     = "프롬프트 또는 이미지를 입력해주세요."
	MsgInvalidRequest    = "요청 형식이 올바르지 않습니다."
	MsgInvalidImage      = "이미지 데이터를 읽을 수 없습니다."
	MsgNoImageGenerated  = "이미지를 생성하지 못했습니다. 다른 프롬프트를 시도해주세요."
	MsgGenerationError   = "이미지 생성 중 오류가 발생했습니다."
	MsgGenerationFailed  = "이미지 생성에 실패했습니다."
	MsgNetworkError      = "네트워크 오류가 발생했습니다. 다시 시도해주세요."
	MsgSaveFailed        = "썸네일 저장에 실패했습니다."
	MsgDeleteFailed      = "썸네일 삭제에 실패했습니다."
	MsgListFailed        = "썸네일 목록을 불러오지 못했습니다."
	MsgThumbnailNotFound = "썸네일을 찾을 수 없습니다."
)

func MsgTooManyImages() string {
	return fmt.Sprintf("이미지는 최대 %d개까지 첨부할 수 있습니다.", MaxImages)
}

func MsgFileTooLarge(name string) string {
	return fmt.Sprintf("%q 파일이 5MB를 초과합니다.", name)
}
