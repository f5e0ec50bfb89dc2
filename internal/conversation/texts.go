package conversation

const (
	textWelcome      = "Здравствуйте! Я ваш помощник для работы с PDF.\n\nВыберите, что вы хотите сделать, или просто отправьте мне файл."
	textCancelled    = "Действие отменено. Выберите, что вы хотите сделать:"
	textAnythingElse = "Чем еще могу помочь?"

	textNotPDF        = "Это не PDF-файл. Я умею работать только с PDF."
	textBatchNotPDF   = "Пожалуйста, убедитесь, что все отправленные файлы имеют формат PDF."
	textExpectingFile = "Сейчас я ожидаю файл, а не текст. Пожалуйста, отправьте документ."
	textUnexpected    = "Не уверен, что с этим делать. Начните заново с /start."

	textGotFile  = "Я получил файл «%s».\nКак именно вы хотите его разбить?"
	textGotBatch = "Я получил %d файлов. Что вы хотите с ними сделать?"

	textChooseSplitMode = "Отлично! Как именно вы хотите разбить PDF файл?"
	textAskOrder        = "Хорошо. Отправьте мне сообщение с порядком разбивки.\n\nНапример, 3,3,4 разобьет документ на три части: 3, 3 и 4 страницы."
	textBadOrder        = "Формат неверный. Используйте только цифры и запятые. Например: 3,3,4"
	textOrderAccepted   = "Порядок \"%s\" принят. Теперь отправьте PDF файл."
	textSendSplitFile   = "Понял. Теперь просто отправьте мне PDF файл для разбивки."

	textAskCombineFiles = "Отправляйте PDF файлы для объединения. Когда закончите, нажмите кнопку."
	textFileAdded       = "Файл «%s» добавлен. Всего файлов: %d."
	textFilesAdded      = "Добавлено файлов: %d. Всего файлов: %d."
	textNeedTwoFiles    = "Нужно хотя бы два файла для объединения. Пришлите еще."

	textAskCommonFile   = "Отправьте ОДИН общий PDF файл, который будет добавлен ко всем остальным."
	textCommonAccepted  = "Общий файл принят. Теперь отправляйте уникальные PDF. Когда закончите, нажмите кнопку."
	textCommonFromBatch = "Пожалуйста, отправляйте только ОДИН общий файл. Я взял первый из присланных («%s»), остальные %d добавлены как уникальные."
	textNeedUniqueFile  = "Вы не отправили ни одного уникального файла для сборки. Пришлите хотя бы один."

	textAskRasterizeFile = "Отправьте PDF файл, страницы которого нужно превратить в изображения."
	textAskPageRange     = "Какие страницы превратить в изображения? Например: 1-3, 5 или «все»."
	textBadPageRange     = "Не удалось разобрать номера страниц. Пример: 1-3, 5 или «все»."

	textProcessing     = "Начинаю обработку..."
	textFileProcessing = "Файл принят. Начинаю обработку..."
	textSplitDone      = "Готово! Все части файла отправлены."
	textCombineDone    = "Готово! Ваш объединенный файл отправлен."
	textAssembleDone   = "Готово! Все файлы собраны и отправлены."
	textRasterizeDone  = "Готово! Все изображения отправлены."
	textFailed         = "Произошла ошибка при обработке файла. Возможно, он поврежден."
)

var mainKeyboard = Keyboard{
	{{Text: "🪓 Разбить PDF файл", Token: TokenSplit}},
	{{Text: "🖇️ Объединить несколько PDF", Token: TokenCombine}},
	{{Text: "➕ Собрать с общим файлом", Token: TokenAssembly}},
	{{Text: "🖼️ PDF в изображения", Token: TokenRasterize}},
}

func splitModeKeyboard(back string) Keyboard {
	return Keyboard{
		{{Text: "По одному листу", Token: TokenSplitSingle}, {Text: "По два листа", Token: TokenSplitDouble}},
		{{Text: "Указать свой порядок", Token: TokenSplitCustom}},
		{{Text: back, Token: TokenMainMenu}},
	}
}

func doneKeyboard(done string) Keyboard {
	return Keyboard{
		{{Text: done, Token: TokenProcessDone}},
		{{Text: "« Назад в главное меню", Token: TokenMainMenu}},
	}
}

var backKeyboard = Keyboard{
	{{Text: "« Назад в главное меню", Token: TokenMainMenu}},
}

var batchKeyboard = Keyboard{
	{{Text: "🖇️ Объединить все в один файл", Token: TokenGroupCombine}},
	{{Text: "🪓 Разбить каждый файл", Token: TokenGroupSplit}},
	{{Text: "« Отмена", Token: TokenMainMenu}},
}
